package format

import (
	"bytes"
	"reflect"
	"strings"

	"github.com/jpalmerr/watchboard/monitor"
)

const maxTreeDepth = 32

// buildTree renders a monitor.Node as an indented tree. The text is kept
// until the root's identity or Version changes.
func buildTree(_ *Factory, _ reflect.Type, fd monitor.FormatData) Func {
	header := labelHeader(fd)
	indent := strings.Repeat(" ", fd.ElementIndent)
	nullLine := labelPrefix(fd) + nullText(fd)

	var (
		buf     bytes.Buffer
		cached  string
		lastID  uintptr
		lastVer uint64
		valid   bool
	)

	return func(v reflect.Value) string {
		x, ok := iface(v)
		if !ok {
			valid = false
			return nullLine
		}
		root := x.(monitor.Node)

		var id uintptr
		if v.Kind() == reflect.Pointer {
			id = v.Pointer()
		}
		version := root.Version()
		if valid && id != 0 && id == lastID && version == lastVer {
			return cached
		}

		buf.Reset()
		buf.WriteString(header)
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(indent)
		buf.WriteString(root.NodeName())
		writeChildren(&buf, root.Children(), indent, 1)

		cached = buf.String()
		lastID, lastVer, valid = id, version, true
		return cached
	}
}

func writeChildren(buf *bytes.Buffer, children []monitor.Node, prefix string, depth int) {
	if depth > maxTreeDepth {
		return
	}
	for i, child := range children {
		last := i == len(children)-1
		connector, next := "├─ ", "│  "
		if last {
			connector, next = "└─ ", "   "
		}
		buf.WriteByte('\n')
		buf.WriteString(prefix)
		buf.WriteString(connector)
		if child == nil {
			buf.WriteString("null")
			continue
		}
		buf.WriteString(child.NodeName())
		writeChildren(buf, child.Children(), prefix+next, depth+1)
	}
}
