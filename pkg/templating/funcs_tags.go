package templating

import (
	"fmt"
	"slices"
	"strings"

	"github.com/CTAG07/pagetags/pkg/pagetags"
	"github.com/CTAG07/pagetags/pkg/store"
	"github.com/CTAG07/pagetags/pkg/tagging"
)

// tagList returns the tags of a page, or of a stored tag string, in the order
// they were stored.
func tagList(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return []string{}, nil
	case store.Page:
		return tagging.Split(val.Tags)
	case *store.Page:
		return tagging.Split(val.Tags)
	case string:
		return tagging.Split(val)
	case []string:
		return val, nil
	}
	return nil, fmt.Errorf("tagList: unsupported type %T", v)
}

// sortedTags returns the tags of a TagSet or tag slice in lexical order.
func sortedTags(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return []string{}, nil
	case pagetags.TagSet:
		return val.Sorted(), nil
	case []string:
		tags := slices.Clone(val)
		slices.Sort(tags)
		return tags, nil
	}
	return nil, fmt.Errorf("sortedTags: unsupported type %T", v)
}

// joinTags joins tags with sep. It takes the separator first so it can end
// a pipeline: {{tagList .page | joinTags ", "}}.
func joinTags(sep string, tags []string) string {
	return strings.Join(tags, sep)
}
