package metrics

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
)

type kind string

const (
	kindCounter   kind = "counter"
	kindHistogram kind = "histogram"
)

// family 是一组同名、同标签集合的指标。
type family struct {
	name    string
	help    string
	kind    kind
	labels  []string
	buckets []float64

	mu     sync.Mutex
	series map[string]*series
}

type series struct {
	values []string
	count  uint64
	sum    float64
	// cumulative[i] 为不大于 buckets[i] 的观测次数。
	cumulative []uint64
}

// registry 按注册顺序输出所有指标族。
type registry struct {
	mu       sync.Mutex
	families []*family
}

var defaultRegistry = &registry{}

func (r *registry) register(f *family) *family {
	f.series = make(map[string]*series)
	r.mu.Lock()
	r.families = append(r.families, f)
	r.mu.Unlock()
	return f
}

func newCounter(name, help string, labels ...string) *family {
	return defaultRegistry.register(&family{name: name, help: help, kind: kindCounter, labels: labels})
}

func newHistogram(name, help string, buckets []float64, labels ...string) *family {
	return defaultRegistry.register(&family{name: name, help: help, kind: kindHistogram, labels: labels, buckets: buckets})
}

func (f *family) lookup(values []string) *series {
	if len(values) != len(f.labels) {
		panic(fmt.Sprintf("metrics: %s expects %d label values, got %d", f.name, len(f.labels), len(values)))
	}
	key := strings.Join(values, "\xff")
	s := f.series[key]
	if s == nil {
		s = &series{values: append([]string(nil), values...)}
		if f.kind == kindHistogram {
			s.cumulative = make([]uint64, len(f.buckets))
		}
		f.series[key] = s
	}
	return s
}

// add 累加计数器。n 为 0 时不创建序列。
func (f *family) add(n uint64, values ...string) {
	if n == 0 {
		return
	}
	f.mu.Lock()
	f.lookup(values).count += n
	f.mu.Unlock()
}

// observe 记录一次直方图观测值，超过最后一个桶的值只计入 +Inf。
func (f *family) observe(v float64, values ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.lookup(values)
	s.count++
	s.sum += v
	for i, bound := range f.buckets {
		if v <= bound {
			s.cumulative[i]++
		}
	}
}

func (f *family) value(values ...string) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.series[strings.Join(values, "\xff")]; ok {
		return s.count
	}
	return 0
}

func (r *registry) writeTo(w io.Writer) error {
	r.mu.Lock()
	families := append([]*family(nil), r.families...)
	r.mu.Unlock()

	var b strings.Builder
	for _, f := range families {
		f.render(&b)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (f *family) render(b *strings.Builder) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fmt.Fprintf(b, "# HELP %s %s\n# TYPE %s %s\n", f.name, f.help, f.name, f.kind)
	keys := make([]string, 0, len(f.series))
	for key := range f.series {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		s := f.series[key]
		labels := f.labelPairs(s.values)
		if f.kind == kindCounter {
			fmt.Fprintf(b, "%s%s %d\n", f.name, braces(labels), s.count)
			continue
		}
		for i, bound := range f.buckets {
			fmt.Fprintf(b, "%s_bucket%s %d\n", f.name, braces(append(labels, `le="`+formatFloat(bound)+`"`)), s.cumulative[i])
		}
		fmt.Fprintf(b, "%s_bucket%s %d\n", f.name, braces(append(labels, `le="+Inf"`)), s.count)
		fmt.Fprintf(b, "%s_sum%s %s\n", f.name, braces(labels), formatFloat(s.sum))
		fmt.Fprintf(b, "%s_count%s %d\n", f.name, braces(labels), s.count)
	}
}

func (f *family) labelPairs(values []string) []string {
	pairs := make([]string, len(values), len(values)+1)
	for i, v := range values {
		pairs[i] = f.labels[i] + `="` + escape(v) + `"`
	}
	return pairs
}

func braces(pairs []string) string {
	if len(pairs) == 0 {
		return ""
	}
	return "{" + strings.Join(pairs, ",") + "}"
}

func escape(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, `"`, `\"`)
	return strings.ReplaceAll(value, "\n", `\n`)
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
