/*
Package pagetags provides three template directives over tagged pages:

	{% tags_of_pages_with_tags <tags> as <var> %}
	{% pages_with_tags <tags> [order (alphabetical|chronological)] [limit <N>] as <var> %}
	{% pages_similar_with <slug> [limit <N>] as <var> %}

<tags> and <slug> are either a quoted literal, fixed when the template is
compiled, or a bare variable name resolved from the render context on every
render. Each directive renders to the empty string and stores its result in
<var>: a TagSet for tags_of_pages_with_tags and a []store.Page for the other
two.

The directives are added to a directive.Library with Register.
*/
package pagetags
