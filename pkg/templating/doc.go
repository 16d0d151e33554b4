/*
Package templating provides a filesystem-based Go template engine for tagged
pages.

Templates are ordinary html/template files that may additionally contain
directive blocks written as {% name args %}. When a template is loaded its
directive blocks are cut out of the text and compiled once. On every render
the compiled directives run first, in source order, filling a fresh render
context, and the html/template body is then executed with that context as dot:

	{% pages_with_tags "go" order chronological limit 5 as recent %}
	<ul>
	{{range .recent}}<li><a href="/{{.Slug}}">{{.Title}}</a> {{naturalTime .PublicationDate}}</li>{{end}}
	</ul>

Files named *.tmpl.html are page templates. Files named *.part.html are
partials, usable from page templates with {{template "name.part.html" .}};
partials may not contain directive blocks.

The engine supports hot-reloading of templates from the filesystem via Refresh.
*/
package templating
