package protocol

import (
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/teranos/gauntlet/errors"
	"github.com/teranos/gauntlet/pipeline"
	"github.com/teranos/gauntlet/plugin"
)

// maxDepth bounds Flatten on self-referencing values.
const maxDepth = 32

// InstanceFromLive snapshots a live Instance.
func InstanceFromLive(inst *pipeline.Instance) Instance {
	return Instance{
		Kind:     plugin.KindInstance,
		ID:       inst.ID(),
		Name:     inst.Name(),
		Families: inst.Families(),
		Data:     FlattenMap(inst.DataMap()),
	}
}

// ContextFromLive snapshots a live Context and all its Instances.
func ContextFromLive(c *pipeline.Context) *Context {
	instances := c.Instances()
	out := &Context{
		Kind:      plugin.KindContext,
		ID:        c.ID(),
		Instances: make([]Instance, 0, len(instances)),
		Data:      FlattenMap(c.DataMap()),
	}
	for _, inst := range instances {
		out.Instances = append(out.Instances, InstanceFromLive(inst))
	}
	return out
}

// Instance returns the snapshot of the Instance with the given id.
func (c *Context) Instance(id string) (Instance, bool) {
	for _, inst := range c.Instances {
		if inst.ID == id {
			return inst, true
		}
	}
	return Instance{}, false
}

// Targets lists the Instances as executor targets, in Context order.
func (c *Context) Targets() []pipeline.TargetRef {
	refs := make([]pipeline.TargetRef, 0, len(c.Instances))
	for _, inst := range c.Instances {
		refs = append(refs, inst.Ref())
	}
	return refs
}

// Ref returns the executor target for the snapshot.
func (i Instance) Ref() pipeline.TargetRef {
	return pipeline.TargetRef{InstanceID: i.ID, Name: i.Name, Families: slices.Clone(i.Families)}
}

// PluginFromDescriptor converts a descriptor to its wire form.
func PluginFromDescriptor(d pipeline.Descriptor) Plugin {
	return Plugin{
		Kind:      plugin.KindPlugin,
		ID:        d.ID,
		Name:      d.Name,
		Order:     d.Order,
		Families:  slices.Clone(d.Families),
		Requires:  d.Requires,
		CanRepair: d.CanRepair,
	}
}

// Descriptor converts the wire form back to a descriptor.
func (p Plugin) Descriptor() pipeline.Descriptor {
	return pipeline.Descriptor{
		ID:        p.ID,
		Name:      p.Name,
		Order:     p.Order,
		Families:  slices.Clone(p.Families),
		Requires:  p.Requires,
		CanRepair: p.CanRepair,
	}
}

// Descriptors converts a discover response to executor input.
func (r *DiscoverResponse) Descriptors() []pipeline.Descriptor {
	out := make([]pipeline.Descriptor, 0, len(r.Plugins))
	for _, p := range r.Plugins {
		out = append(out, p.Descriptor())
	}
	return out
}

// ResultFromLive converts a Result to its wire form.
func ResultFromLive(r *pipeline.Result) *Result {
	out := &Result{
		Kind:         KindResult,
		Success:      r.Success,
		PluginID:     r.PluginID,
		PluginName:   r.PluginName,
		InstanceID:   r.InstanceID,
		InstanceName: r.InstanceName,
		Phase:        string(r.Phase),
		Mode:         string(r.Mode),
		Records:      make([]Record, 0, len(r.Records)),
		DurationMS:   float64(r.Duration) / float64(time.Millisecond),
	}
	if r.Error != nil {
		out.Error = &UnitError{
			Kind:    string(r.Error.Kind),
			Message: r.Error.Message,
			Trace:   r.Error.Trace,
		}
	}
	for _, rec := range r.Records {
		out.Records = append(out.Records, Record{Level: string(rec.Level), Message: rec.Message, Time: rec.Time})
	}
	return out
}

// ToPipeline converts the wire form back to a Result.
func (r *Result) ToPipeline() *pipeline.Result {
	out := &pipeline.Result{
		PluginID:     r.PluginID,
		PluginName:   r.PluginName,
		InstanceID:   r.InstanceID,
		InstanceName: r.InstanceName,
		Phase:        pipeline.Phase(r.Phase),
		Mode:         pipeline.Mode(r.Mode),
		Success:      r.Success,
		Duration:     time.Duration(r.DurationMS * float64(time.Millisecond)),
	}
	if r.Error != nil {
		out.Error = &pipeline.UnitError{
			Kind:    pipeline.ErrorKind(r.Error.Kind),
			Message: r.Error.Message,
			Trace:   r.Error.Trace,
		}
	}
	for _, rec := range r.Records {
		out.Records = append(out.Records, pipeline.Record{
			Level:   pipeline.Level(rec.Level),
			Message: rec.Message,
			Time:    rec.Time,
		})
	}
	return out
}

// CheckKind rejects a decoded snapshot whose tag is not want.
func CheckKind(got, want plugin.Kind) error {
	if got != want {
		return errors.Wrapf(errors.ErrTransport, "malformed payload: expected %s snapshot, got %q", want, got)
	}
	return nil
}

// FlattenMap deep-copies m into primitives. See Flatten.
func FlattenMap(m map[string]any) map[string]any {
	return flattenMap(m, 0)
}

// Flatten deep-copies v into values that survive the boundary: nil,
// booleans, numbers, strings, and slices and string-keyed maps of those.
// Live entities and their snapshots become their identifiers, times become
// RFC 3339 text, NaN and infinities become "NaN", "+Inf" and "-Inf", and
// anything else is rendered as text.
func Flatten(v any) any {
	return flatten(v, 0)
}

func flattenMap(m map[string]any, depth int) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[validText(k)] = flatten(v, depth+1)
	}
	return out
}

// validText replaces invalid UTF-8 sequences in s.
func validText(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, string(utf8.RuneError))
}

// finite returns v unless f is NaN or infinite, which render as text.
func finite(f float64, v any) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return v
}

func flatten(v any, depth int) any {
	if depth > maxDepth {
		return validText(pipeline.Render(v))
	}

	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return validText(x)
	case bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return x
	case float32:
		return finite(float64(x), x)
	case float64:
		return finite(x, x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case *pipeline.Instance:
		if x == nil {
			return nil
		}
		return x.ID()
	case *pipeline.Context:
		if x == nil {
			return nil
		}
		return x.ID()
	case *pipeline.Plugin:
		if x == nil {
			return nil
		}
		return x.ID
	case Instance:
		return x.ID
	case *Instance:
		if x == nil {
			return nil
		}
		return x.ID
	case *Context:
		if x == nil {
			return nil
		}
		return x.ID
	case Plugin:
		return x.ID
	case map[string]any:
		if x == nil {
			return nil
		}
		return flattenMap(x, depth)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return validText(rv.String())
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return finite(rv.Float(), rv.Float())
	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		fallthrough
	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return validText(pipeline.Render(v))
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = flatten(rv.Index(i).Interface(), depth+1)
		}
		return out
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		if rv.Type().Key().Kind() != reflect.String {
			return validText(pipeline.Render(v))
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[validText(iter.Key().String())] = flatten(iter.Value().Interface(), depth+1)
		}
		return out
	}
	return validText(pipeline.Render(v))
}
