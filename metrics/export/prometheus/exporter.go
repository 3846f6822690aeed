package prometheus

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/metrics/export/internaldefs"
)

const contentType = "text/plain; version=0.0.4; charset=utf-8"

// Source is what the exporter reads on every scrape. *authcore.Engine
// satisfies it.
type Source interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter renders engine metrics in Prometheus text exposition format.
type Exporter struct {
	source Source
}

// NewPrometheusExporter creates an exporter that reads from engine.
func NewPrometheusExporter(engine *authcore.Engine) *Exporter {
	return &Exporter{source: engine}
}

// NewPrometheusExporterFromSource creates an exporter over a custom Source.
func NewPrometheusExporterFromSource(source Source) *Exporter {
	return &Exporter{source: source}
}

// Handler serves the rendered metrics. Disabled metrics produce an empty body.
func (e *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(e.render())
	})
}

// Render returns the current exposition text.
func (e *Exporter) Render() string {
	return string(e.render())
}

func (e *Exporter) render() []byte {
	if e == nil || e.source == nil {
		return nil
	}

	snap := e.source.MetricsSnapshot()
	dropped := e.source.AuditDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return nil
	}

	w := expositionWriter{}
	w.buf.Grow(4096)
	for _, def := range internaldefs.CounterDefs {
		w.counter(def, snap.Counters[def.ID])
	}
	w.counter(internaldefs.AuditDropped, dropped)
	for _, def := range internaldefs.HistogramDefs {
		if _, ok := snap.Histograms[def.ID]; !ok {
			continue
		}
		w.histogram(def, internaldefs.BuildSeries(def, snap))
	}
	return w.buf.Bytes()
}

type expositionWriter struct {
	buf bytes.Buffer
}

func (w *expositionWriter) header(name, help, kind string) {
	w.buf.WriteString("# HELP " + name + " " + escapeHelp(help) + "\n")
	w.buf.WriteString("# TYPE " + name + " " + kind + "\n")
}

func (w *expositionWriter) sample(name, labels, value string) {
	w.buf.WriteString(name)
	w.buf.WriteString(labels)
	w.buf.WriteByte(' ')
	w.buf.WriteString(value)
	w.buf.WriteByte('\n')
}

func (w *expositionWriter) counter(def internaldefs.CounterDef, v uint64) {
	w.header(def.Name, def.Help, "counter")
	w.sample(def.Name, "", strconv.FormatUint(v, 10))
}

func (w *expositionWriter) histogram(def internaldefs.HistogramDef, s internaldefs.Series) {
	w.header(def.Name, def.Help, "histogram")
	for _, b := range s.Buckets {
		w.sample(def.Name+"_bucket", `{le="`+b.Label+`"}`, strconv.FormatUint(b.Count, 10))
	}
	w.sample(def.Name+"_sum", "", strconv.FormatFloat(s.Sum, 'g', -1, 64))
	w.sample(def.Name+"_count", "", strconv.FormatUint(s.Count, 10))
}

var helpEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`)

func escapeHelp(help string) string {
	return helpEscaper.Replace(help)
}
