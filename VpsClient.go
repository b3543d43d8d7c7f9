package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"VpsClient/acquire"
	"VpsClient/api"
	"VpsClient/camera"
	"VpsClient/config"
	"VpsClient/logger"
	"VpsClient/monitor"
	"VpsClient/session"
	"VpsClient/vps"

	"go.uber.org/zap"
)

func GetOutboundIP() (string, error) {
	// 只为拿到本机出口 IP，不会真正发包
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String(), nil
}

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Println("Failed to read config file:", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.DevelopmentLog, cfg.LogLevel); err != nil {
		fmt.Println("Failed to init logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Log()

	if err := cfg.Validate(); err != nil {
		fmt.Println(strings.Repeat("!", 64))
		log.Warn("configuration incomplete, localization is rejected until it is fixed", zap.Error(err))
		fmt.Println(strings.Repeat("!", 64))
	}

	host := "localhost"
	if ip, err := GetOutboundIP(); err == nil {
		host = ip
	}
	fmt.Println(strings.Repeat("#", 64))
	fmt.Printf(" API     : http://%s:%d/api\n", host, cfg.APIPort)
	fmt.Printf(" Results : ws://%s:%d/ws/results\n", host, cfg.APIPort)
	fmt.Printf(" Metrics : http://%s:%d/metrics\n", host, cfg.MetricsPort)
	fmt.Println(strings.Repeat("#", 64))

	var (
		fetcher acquire.Fetcher
		uploads *acquire.Latest
	)
	if cfg.Accessory.BaseURL != "" {
		acc := acquire.NewAccessory(cfg.Accessory.BaseURL, cfg.FetchTimeout())
		log.Info("frames from accessory", zap.String("base_url", acc.BaseURL()))
		fetcher = acc
	} else {
		log.Info("no accessory configured, frames come from POST /api/frame")
		uploads = &acquire.Latest{}
		fetcher = uploads
	}

	tracking := &api.TrackingStore{}
	hub := api.NewHub()
	sess := session.New(session.Deps{
		Frames:      acquire.NewLoop(fetcher, cfg.Accessory.MaxAttempts, cfg.RetryDelay()),
		Tracker:     tracking,
		Localizer:   vps.NewClient(cfg.VPSOptions()),
		Preparer:    camera.NewNormalizer(cfg.LandscapeSize(), cfg.Image.JPEGQuality),
		Sink:        hub,
		Credentials: cfg.Credentials(),
		Maps:        cfg.MapSelection(),
		StopStream:  *cfg.Accessory.StopStream,
	}, nil)

	server := &api.Server{Session: sess, Tracking: tracking, Hub: hub, Uploads: uploads}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		monitor.StartMon(ctx, cfg.MetricsPort)
	}()
	server.Start(cfg.APIPort)

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("api shutdown", zap.Error(err))
	}
	wg.Wait()
	fmt.Println("Safely exited")
}
