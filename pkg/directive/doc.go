/*
Package directive implements the host side of `{% name args %}` template
directives: scanning blocks out of template source, splitting a block into
its name and arguments, looking the name up in an explicitly populated
Library, and the render-time Context that compiled nodes read from and
write to.

A Library is built once at startup and handed to whatever compiles
templates; there is no package-level registry.
*/
package directive
