package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	"VpsClient/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

const sampleInterval = 500 * time.Millisecond

var (
	Registry = prometheus.NewRegistry()

	memUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "memory_usage_Megabytes",
		Help: "Memory usage in Megabytes",
	})
	cpuUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cpu_usage_percent",
		Help: "CPU usage in percent",
	})

	LocalizationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vps_localization_total",
		Help: "Localization attempts by final status",
	}, []string{"status"})
	LocalizationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "vps_localization_duration_seconds",
		Help:    "Wall time of one localization attempt, capture to result",
		Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
	})
	FrameFetchAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vps_frame_fetch_attempts_total",
		Help: "Frame fetch attempts against the frame source by outcome",
	}, []string{"outcome"})
	AuthTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vps_auth_total",
		Help: "Credential exchanges by outcome",
	}, []string{"outcome"})
)

func init() {
	Registry.MustRegister(memUsage, cpuUsage, LocalizationTotal, LocalizationDuration, FrameFetchAttempts, AuthTotal)
}

// ObserveLocalization records one finished attempt.
func ObserveLocalization(status string, elapsed time.Duration) {
	LocalizationTotal.WithLabelValues(status).Inc()
	LocalizationDuration.Observe(elapsed.Seconds())
}

func FetchAttempt(ok bool) {
	FrameFetchAttempts.WithLabelValues(outcome(ok)).Inc()
}

func AuthAttempt(ok bool) {
	AuthTotal.WithLabelValues(outcome(ok)).Inc()
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

func CheckProcessInfo(p *process.Process) {
	memInfo, err := p.MemoryInfo()
	if err == nil {
		memUsage.Set(float64(memInfo.RSS / 1024 / 1024))
	}
	cpuPercent, err := p.CPUPercent()
	if err == nil {
		cpuUsage.Set(math.Round(cpuPercent*100) / 100)
	}
}

// StartMon serves /metrics on port and samples process stats until ctx is done.
func StartMon(ctx context.Context, port int) {
	p := &process.Process{Pid: int32(os.Getpid())}

	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log().Error("metrics server ListenAndServe error", zap.Error(err))
		}
	}()

	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()
checkPcs:
	for {
		select {
		case <-ctx.Done():
			break checkPcs
		case <-ticker.C:
			CheckProcessInfo(p)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log().Error("metrics server Shutdown error", zap.Error(err))
	}
}
