package screens

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/synaptica-ai/radiology-console/pkg/common/models"
	"github.com/synaptica-ai/radiology-console/pkg/datastore"
	"github.com/synaptica-ai/radiology-console/pkg/format"
	"github.com/synaptica-ai/radiology-console/pkg/poller"
)

type Indicator struct {
	Label  string
	Health models.Health
}

type SystemView struct {
	State      datastore.State
	Status     *models.SystemStatus
	Uptime     string
	Indicators []Indicator
	Notice     string
	Error      string
}

// System polls the service status while mounted.
type System struct {
	store    *datastore.Store[models.SystemStatus]
	poll     *poller.Controller[models.SystemStatus]
	interval time.Duration
}

func NewSystem(src StatusGetter, seedStatus models.SystemStatus, interval time.Duration) *System {
	store := datastore.New[models.SystemStatus]("system-status", src.GetSystemStatus, datastore.WithSeed(seedStatus))
	return &System{
		store:    store,
		poll:     poller.New[models.SystemStatus](store),
		interval: interval,
	}
}

// Start begins polling; onView receives a view per completed tick.
func (s *System) Start(onView func(SystemView)) {
	s.poll.Start(s.interval, func(res datastore.LoadResult[models.SystemStatus]) {
		onView(BuildSystemView(res))
	})
}

// Refresh performs a manual load outside the schedule. It joins a poll that
// is already in flight rather than issuing a second request.
func (s *System) Refresh(ctx context.Context) SystemView {
	return BuildSystemView(s.store.Load(ctx))
}

func (s *System) Stop() {
	s.poll.Stop()
}

func (s *System) Close() {
	s.poll.Stop()
	s.store.Close()
}

func BuildSystemView(res datastore.LoadResult[models.SystemStatus]) SystemView {
	view := SystemView{State: res.State, Notice: degradedNotice(res)}
	if !res.HasValue() {
		if res.State == datastore.StateFailed {
			view.Error = res.Reason
		}
		return view
	}
	status := res.Value
	view.Status = &status
	view.Uptime = format.Uptime(status.UptimeSeconds)
	view.Indicators = Indicators(status)
	return view
}

// Indicators derives the component health panel. The GPU is reported
// degraded when no utilisation figure is available.
func Indicators(status models.SystemStatus) []Indicator {
	gpu := models.HealthHealthy
	if status.Profiler.GPUUtilPercent == nil || *status.Profiler.GPUUtilPercent == 0 {
		gpu = models.HealthDegraded
	}
	return []Indicator{
		{Label: "API Server", Health: status.Status},
		{Label: "Model Pipeline", Health: status.Status},
		{Label: "Memory", Health: models.HealthHealthy},
		{Label: "GPU", Health: gpu},
	}
}

func RenderSystem(v SystemView, mode format.Mode) string {
	var b strings.Builder
	if v.Notice != "" {
		fmt.Fprintf(&b, "! %s\n\n", v.Notice)
	}
	if v.Status == nil {
		if v.Error != "" {
			fmt.Fprintf(&b, "Failed to load system status: %s\n", v.Error)
		}
		return b.String()
	}
	st := v.Status

	fmt.Fprintf(&b, "System status: %s\n\n", strings.ToUpper(string(st.Status)))

	metrics := format.NewTable(mode)
	metrics.Header("Uptime", "Total Cases", "Avg Inference Time", "System Load")
	metrics.Row(v.Uptime, st.TotalCases, format.Seconds(st.AvgInferenceTime), systemLoad(st.Profiler))
	b.WriteString(metrics.String())
	b.WriteString("\n\n")

	prof := format.NewTable(mode)
	prof.Title("Profiler Metrics")
	prof.Header("Metric", "Value")
	prof.Row("Total Latency", format.Seconds(st.Profiler.TotalLatency))
	prof.Row("Planner Latency", fmt.Sprintf("%.3fms", st.Profiler.PlannerLatencyMs))
	prof.Row("Steps/sec", format.OptFloat(st.Profiler.StepsPerSec, "%.0f"))
	prof.Row("GPU Utilisation", format.OptFloat(st.Profiler.GPUUtilPercent, "%.0f%%"))
	prof.Row("Memory", format.OptFloat(st.Profiler.MemoryMB, "%.0f MB"))
	b.WriteString(prof.String())
	b.WriteString("\n\n")

	health := format.NewTable(mode)
	health.Title("Component Health")
	health.Header("Component", "Status")
	for _, ind := range v.Indicators {
		health.Row(ind.Label, strings.ToUpper(string(ind.Health)))
	}
	b.WriteString(health.String())
	b.WriteString("\n")
	return b.String()
}

func systemLoad(p models.ProfilerMetrics) string {
	if p.GPUUtilPercent == nil || *p.GPUUtilPercent == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.0f%%", *p.GPUUtilPercent)
}
