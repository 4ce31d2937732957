package protobuf

import (
	"context"
	"fmt"
	"strings"

	"github.com/aevon-lab/docagg/internal/schema"
	"github.com/bufbuild/protocompile"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Compiler compiles protobuf collection schema definitions.
//
// The first top-level message describes a document. A repeated message
// field named "frames" marks the collection as video; the fields of its
// message type become the frame fields.
type Compiler struct{}

// NewCompiler creates a new protobuf compiler.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// Compile parses a .proto definition and returns the collection it describes.
func (c *Compiler) Compile(ctx context.Context, s *schema.Schema) (*schema.Collection, error) {
	if s.Format != schema.FormatProtobuf {
		return nil, fmt.Errorf("expected protobuf format, got %s", s.Format)
	}

	fileName := fmt.Sprintf("%s_v%d.proto", strings.ReplaceAll(s.Collection, ".", "_"), s.Version)

	resolver := &singleFileResolver{
		fileName: fileName,
		content:  string(s.Definition),
	}

	compiler := protocompile.Compiler{
		Resolver:       protocompile.WithStandardImports(resolver),
		SourceInfoMode: protocompile.SourceInfoNone,
	}

	files, err := compiler.Compile(ctx, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to compile proto: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files compiled")
	}

	messages := files[0].Messages()
	if messages.Len() == 0 {
		return nil, fmt.Errorf("proto must define at least one message")
	}
	msg := messages.Get(0)

	b := &builder{collection: s.Collection, version: s.Version, visiting: map[protoreflect.FullName]bool{}}
	coll := &schema.Collection{Name: s.Collection, Media: schema.MediaImage}

	fields := msg.Fields()
	if frames := fields.ByName(schema.FramesField); frames != nil && frames.IsList() && frames.Kind() == protoreflect.MessageKind {
		coll.Media = schema.MediaVideo
		coll.FrameFields = b.messageFields(frames.Message(), "frames")
	}
	coll.Fields = b.messageFields(msg, "")
	delete(coll.Fields, schema.FramesField)

	if len(b.errs) > 0 {
		return nil, &schema.MultiValidationError{Errors: b.errs}
	}
	return coll, nil
}

type builder struct {
	collection string
	version    int
	visiting   map[protoreflect.FullName]bool
	errs       []*schema.ValidationError
}

func (b *builder) messageFields(md protoreflect.MessageDescriptor, prefix string) map[string]*schema.Field {
	b.visiting[md.FullName()] = true
	defer delete(b.visiting, md.FullName())

	fds := md.Fields()
	fields := make(map[string]*schema.Field, fds.Len())
	for i := 0; i < fds.Len(); i++ {
		fd := fds.Get(i)
		name := string(fd.Name())
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}

		f := b.fieldType(fd, name, path)
		if f == nil {
			continue
		}
		if fd.IsList() {
			f = &schema.Field{Name: name, Kind: schema.KindList, Elem: f}
		}
		fields[name] = f
	}
	return fields
}

func (b *builder) fieldType(fd protoreflect.FieldDescriptor, name, path string) *schema.Field {
	if fd.IsMap() {
		return &schema.Field{Name: name, Kind: schema.KindDict}
	}

	switch fd.Kind() {
	case protoreflect.StringKind, protoreflect.EnumKind:
		return &schema.Field{Name: name, Kind: schema.KindString}
	case protoreflect.BoolKind:
		return &schema.Field{Name: name, Kind: schema.KindBool}
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind,
		protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind,
		protoreflect.Uint32Kind, protoreflect.Fixed32Kind,
		protoreflect.Uint64Kind, protoreflect.Fixed64Kind:
		return &schema.Field{Name: name, Kind: schema.KindInt}
	case protoreflect.FloatKind, protoreflect.DoubleKind:
		return &schema.Field{Name: name, Kind: schema.KindFloat}
	case protoreflect.MessageKind, protoreflect.GroupKind:
		md := fd.Message()
		switch md.FullName() {
		case "google.protobuf.Timestamp":
			return &schema.Field{Name: name, Kind: schema.KindDateTime}
		case "google.protobuf.Struct", "google.protobuf.Any", "google.protobuf.Value":
			return &schema.Field{Name: name, Kind: schema.KindDict}
		}
		if b.visiting[md.FullName()] {
			// Recursive messages have no finite field tree.
			return &schema.Field{Name: name, Kind: schema.KindDict}
		}
		return &schema.Field{Name: name, Kind: schema.KindEmbedded, Fields: b.messageFields(md, path)}
	}

	b.errs = append(b.errs, &schema.ValidationError{
		Collection: b.collection,
		Version:    b.version,
		Format:     string(schema.FormatProtobuf),
		Message:    fmt.Sprintf("unsupported proto kind %s", fd.Kind()),
		Field:      path,
		Type:       fd.Kind().String(),
	})
	return nil
}

// singleFileResolver provides proto content for compilation.
type singleFileResolver struct {
	fileName string
	content  string
}

func (r *singleFileResolver) FindFileByPath(path string) (protocompile.SearchResult, error) {
	if path == r.fileName {
		return protocompile.SearchResult{
			Source: strings.NewReader(r.content),
		}, nil
	}
	return protocompile.SearchResult{}, fmt.Errorf("file not found: %s", path)
}
