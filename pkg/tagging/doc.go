/*
Package tagging holds the tag string conventions shared by the store and the
template directives.

Tags are stored on a page as a single denormalised string in which tags are
separated by whitespace and tags containing whitespace are double-quoted, the
same way a shell would quote arguments. User input is more forgiving and may
also be comma-delimited.
*/
package tagging
