package schema

import (
	"sort"
	"strings"

	"github.com/aevon-lab/docagg/internal/expression"
	"go.mongodb.org/mongo-driver/bson"
)

// MediaKind distinguishes collections whose documents carry per-frame
// sub-documents from those that do not.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// FramesField is the list field holding per-frame documents in video collections.
const FramesField = "frames"

var idField = &Field{Name: "_id", Kind: KindObjectID}

// Collection is a compiled collection schema: the declared fields of its
// documents and, for video collections, of their frames.
type Collection struct {
	Name        string
	Media       MediaKind
	Fields      map[string]*Field
	FrameFields map[string]*Field
}

// MediaKind returns the media kind of the collection.
func (c *Collection) MediaKind() MediaKind {
	if c.Media == "" {
		return MediaImage
	}
	return c.Media
}

// FieldNames returns the top-level field names in order.
func (c *Collection) FieldNames() []string {
	return sortedNames(c.Fields)
}

func (c *Collection) isFramePath(path string) bool {
	return c.MediaKind() == MediaVideo && (path == FramesField || strings.HasPrefix(path, FramesField+"."))
}

// FieldType returns the declared type of the field at path. Explicit "[]"
// markers are ignored. Paths that descend into a dict field resolve to a
// nil field without error, since their contents are not declared.
func (c *Collection) FieldType(path string) (*Field, error) {
	clean := strings.ReplaceAll(path, "[]", "")
	fields := c.Fields
	rel := clean

	if c.isFramePath(clean) {
		if clean == FramesField {
			return &Field{Name: FramesField, Kind: KindList, Elem: &Field{Name: FramesField, Kind: KindEmbedded, Fields: c.FrameFields}}, nil
		}
		fields = c.FrameFields
		rel = strings.TrimPrefix(clean, FramesField+".")
	}

	segs := strings.Split(rel, ".")
	var f *Field
	for i, seg := range segs {
		f = lookup(fields, seg)
		if f == nil {
			return nil, &FieldNotFoundError{Collection: c.Name, Path: path}
		}
		if i == len(segs)-1 {
			break
		}
		for f.Kind == KindList && f.Elem != nil {
			f = f.Elem
		}
		switch f.Kind {
		case KindEmbedded:
			fields = f.Fields
		case KindDict, KindList:
			return nil, nil
		default:
			return nil, &FieldNotFoundError{Collection: c.Name, Path: path}
		}
	}
	return f, nil
}

func lookup(fields map[string]*Field, name string) *Field {
	if f, ok := fields[name]; ok {
		return f
	}
	if name == "id" || name == "_id" {
		return idField
	}
	return nil
}

// ResolveOptions controls how list fields along a path are classified.
type ResolveOptions struct {
	// AutoUnwind marks every list on the path for unwinding.
	AutoUnwind bool
	// OmitTerminalLists leaves a list at the end of the path unclassified.
	OmitTerminalLists bool
	// AllowMissing stops at the first undeclared segment instead of failing.
	AllowMissing bool
}

// ResolvedPath is the database path of a field and the list fields along it.
type ResolvedPath struct {
	Path         string
	IsFrameField bool
	Unwind       []string
	Retained     []string
	IDToString   bool
}

// ResolvePath maps a user-facing field name onto its database path.
//
// Segments suffixed with "[]" are unwound even when AutoUnwind is off.
// Identifier fields are addressed by their "_id" database name and flagged
// for string conversion. Frame fields of video collections are returned
// relative to the frame document when AutoUnwind is set, and with the
// "frames." prefix (and "frames" as a retained list) otherwise.
func (c *Collection) ResolvePath(name string, opts ResolveOptions) (*ResolvedPath, error) {
	clean := strings.ReplaceAll(name, "[]", "")
	explicit := explicitUnwinds(name)

	rp := &ResolvedPath{Path: clean}
	fields := c.Fields
	rel := clean

	if c.isFramePath(clean) {
		rp.IsFrameField = true
		if clean == FramesField {
			return rp, nil
		}
		fields = c.FrameFields
		rel = strings.TrimPrefix(clean, FramesField+".")
	}

	segs := strings.Split(rel, ".")
	var f *Field
walk:
	for i, seg := range segs {
		f = lookup(fields, seg)
		if f == nil {
			if opts.AllowMissing {
				break
			}
			return nil, &FieldNotFoundError{Collection: c.Name, Path: name}
		}

		sub := strings.Join(segs[:i+1], ".")
		terminal := i == len(segs)-1
		if f.Kind == KindList {
			full := sub
			if rp.IsFrameField {
				full = FramesField + "." + sub
			}
			switch {
			case explicit[full]:
				rp.Unwind = append(rp.Unwind, sub)
			case terminal && opts.OmitTerminalLists:
			case opts.AutoUnwind:
				rp.Unwind = append(rp.Unwind, sub)
			default:
				rp.Retained = append(rp.Retained, sub)
			}
			for f.Kind == KindList && f.Elem != nil {
				f = f.Elem
			}
		}

		if terminal {
			break
		}
		switch f.Kind {
		case KindEmbedded:
			fields = f.Fields
		case KindDict, KindList:
			f = nil
			break walk
		default:
			if opts.AllowMissing {
				f = nil
				break walk
			}
			return nil, &FieldNotFoundError{Collection: c.Name, Path: name}
		}
	}

	if f != nil && f.Kind == KindObjectID {
		rp.IDToString = true
		if segs[len(segs)-1] == "id" && f == idField {
			segs[len(segs)-1] = "_id"
		}
	}
	rp.Path = strings.Join(segs, ".")

	sort.Strings(rp.Unwind)
	sort.Strings(rp.Retained)

	if rp.IsFrameField && !opts.AutoUnwind {
		rp.Path = FramesField + "." + rp.Path
		rp.Unwind = prefixAll(FramesField+".", rp.Unwind)
		rp.Retained = prefixAll(FramesField+".", rp.Retained)
		if explicit[FramesField] {
			rp.Unwind = append([]string{FramesField}, rp.Unwind...)
		} else {
			rp.Retained = append([]string{FramesField}, rp.Retained...)
		}
	}

	return rp, nil
}

func explicitUnwinds(name string) map[string]bool {
	out := make(map[string]bool)
	parts := strings.Split(name, ".")
	for i, p := range parts {
		if strings.HasSuffix(p, "[]") {
			prefix := make([]string, i+1)
			for j := 0; j <= i; j++ {
				prefix[j] = strings.TrimSuffix(parts[j], "[]")
			}
			out[strings.Join(prefix, ".")] = true
		}
	}
	return out
}

func prefixAll(prefix string, paths []string) []string {
	if len(paths) == 0 {
		return paths
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = prefix + p
	}
	return out
}

// SetFieldPipeline returns the stages that overwrite the field name with
// the value of e, evaluated relative to the field's current value. Lists
// along the path are mapped element by element so the expression applies
// to each leaf. With embeddedRoot, e is evaluated against the whole
// document and stored under name.
func (c *Collection) SetFieldPipeline(name string, e expression.Expr, embeddedRoot, allowMissing bool) ([]bson.D, string, error) {
	if embeddedRoot {
		return []bson.D{{{Key: "$set", Value: bson.D{{Key: name, Value: e.Compile("")}}}}}, name, nil
	}

	rp, err := c.ResolvePath(name, ResolveOptions{AutoUnwind: true, OmitTerminalLists: true, AllowMissing: allowMissing})
	if err != nil {
		return nil, "", err
	}

	path := rp.Path
	lists := rp.Unwind
	if rp.IsFrameField && path != FramesField {
		path = FramesField + "." + path
		lists = append([]string{FramesField}, prefixAll(FramesField+".", lists)...)
	}

	if len(lists) == 0 {
		return []bson.D{{{Key: "$set", Value: bson.D{{Key: path, Value: e.Compile("$" + path)}}}}}, name, nil
	}

	value := mapLists(path, lists, 0, "$"+lists[0], e)
	return []bson.D{{{Key: "$set", Value: bson.D{{Key: lists[0], Value: value}}}}}, name, nil
}

// mapLists builds the $map over lists[i] whose elements get the leaf of
// path replaced, descending into the next list level when there is one.
func mapLists(path string, lists []string, i int, input string, e expression.Expr) bson.D {
	var in any
	if i == len(lists)-1 {
		leaf := strings.TrimPrefix(path, lists[i]+".")
		in = setAt("$$this", leaf, e.Compile("$$this."+leaf))
	} else {
		rel := strings.TrimPrefix(lists[i+1], lists[i]+".")
		in = setAt("$$this", rel, mapLists(path, lists, i+1, "$$this."+rel, e))
	}
	return bson.D{{Key: "$map", Value: bson.D{
		{Key: "input", Value: input},
		{Key: "as", Value: "this"},
		{Key: "in", Value: in},
	}}}
}

// setAt returns base with the dotted field rel replaced by value.
func setAt(base, rel string, value any) bson.D {
	head, rest, nested := strings.Cut(rel, ".")
	if nested {
		value = setAt(base+"."+head, rest, value)
	}
	return bson.D{{Key: "$mergeObjects", Value: bson.A{base, bson.D{{Key: head, Value: value}}}}}
}
