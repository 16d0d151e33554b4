/*
Package store is the SQLite-backed content store behind the page tag
directives. It keeps sites, pages, tags and the associations linking one tag
to one page, and answers the three questions the directives ask: which pages
on a site carry any of a set of tags, which page has a given slug, and which
pages are related to a page through shared tags.

Every page also carries its tags as a single denormalised string (see package
tagging) which is rewritten together with the association rows, so the two
never disagree.
*/
package store
