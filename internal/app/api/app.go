// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"context"
	"fmt"
	"log/slog"
	nethttp "net/http"
	"os"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"agent-platform/internal/agent"
	"agent-platform/internal/api/http"
	"agent-platform/internal/api/http/middleware"
	"agent-platform/internal/app"
	"agent-platform/internal/einoext"
	"agent-platform/internal/tool/builtin"
	"agent-platform/internal/tool/registry"
	"agent-platform/pkg/metrics"
)

// otelProviderShutdown 用于优雅关闭时关闭 OpenTelemetry provider
type otelProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// App API 应用（装配 LLM 客户端、工具注册表、Agent Service 与 HTTP Router）
type App struct {
	config       *app.Bootstrap
	service      *agent.Service
	router       *http.Router
	hertz        *server.Hertz
	otelProvider otelProviderShutdown
	metricsSrv   *nethttp.Server
}

// NewApp 创建 API 应用（由 cmd/api 调用）
func NewApp(ctx context.Context, bootstrap *app.Bootstrap) (*App, error) {
	if bootstrap == nil || bootstrap.Config == nil {
		return nil, fmt.Errorf("bootstrap 配置为空")
	}
	cfg := bootstrap.Config

	client, err := einoext.NewDefaultClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("初始化 LLM 客户端失败: %w", err)
	}

	reg := registry.New()
	if err := reg.Register(builtin.NewCalcTool()); err != nil {
		return nil, fmt.Errorf("注册 calc 工具失败: %w", err)
	}
	if err := reg.Register(builtin.NewHTTPTool()); err != nil {
		return nil, fmt.Errorf("注册 http 工具失败: %w", err)
	}

	service := agent.NewService(cfg, client, reg, bootstrap.RunStore, bootstrap.Logger)

	handler := http.NewHandler(service)
	mw := middleware.NewMiddleware(cfg.API)
	router := http.NewRouter(handler, mw)

	return &App{
		config:  bootstrap,
		service: service,
		router:  router,
	}, nil
}

// Service 返回 Agent Service（测试与 cli 复用）
func (a *App) Service() *agent.Service {
	return a.service
}

// Run 启动 HTTP 服务，addr 如 ":8080"
func (a *App) Run(addr string) error {
	a.config.Logger.Info("API 服务启动", "addr", addr)

	// 使用 Hertz slog 扩展，与 bootstrap 配置对齐
	output := os.Stdout
	if a.config.Config.Log.File != "" {
		f, err := os.OpenFile(a.config.Config.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("打开日志文件失败: %w", err)
		}
		output = f
	}
	levelVar := &slog.LevelVar{}
	switch a.config.Config.Log.Level {
	case "debug":
		levelVar.Set(slog.LevelDebug)
	case "warn":
		levelVar.Set(slog.LevelWarn)
	case "error":
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
	hertzLogger := hertzslog.NewLogger(
		hertzslog.WithOutput(output),
		hertzslog.WithLevel(levelVar),
	)
	hlog.SetLogger(hertzLogger)

	// 可选：启用链路追踪（OpenTelemetry）
	tracingCfg := a.config.Config.Monitoring.Tracing
	if tracingCfg.Enable {
		serviceName := tracingCfg.ServiceName
		if serviceName == "" {
			serviceName = "agent-api"
		}
		exportEndpoint := tracingCfg.ExportEndpoint
		if exportEndpoint == "" {
			exportEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		}
		if exportEndpoint != "" {
			opts := []provider.Option{
				provider.WithServiceName(serviceName),
				provider.WithExportEndpoint(exportEndpoint),
			}
			if tracingCfg.Insecure {
				opts = append(opts, provider.WithInsecure())
			}
			p := provider.NewOpenTelemetryProvider(opts...)
			a.otelProvider = p
			tracerOpt, cfg := hertztracing.NewServerTracer()
			a.hertz = a.router.Build(addr, tracerOpt)
			a.hertz.Use(hertztracing.ServerMiddleware(cfg))
			a.config.Logger.Info("链路追踪已启用", "service_name", serviceName, "endpoint", exportEndpoint)
		} else {
			a.hertz = a.router.Build(addr)
		}
	} else {
		a.hertz = a.router.Build(addr)
	}

	// 独立 metrics 端口（主服务的 /metrics 始终可用，这里是给抓取面的旁路端口）
	promCfg := a.config.Config.Monitoring.Prometheus
	if promCfg.Enable && promCfg.Port > 0 && promCfg.Port != a.config.Config.API.Port {
		mux := nethttp.NewServeMux()
		mux.HandleFunc("/metrics", func(w nethttp.ResponseWriter, _ *nethttp.Request) {
			w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
			if err := metrics.WritePrometheus(w); err != nil {
				nethttp.Error(w, err.Error(), nethttp.StatusInternalServerError)
			}
		})
		a.metricsSrv = &nethttp.Server{Addr: fmt.Sprintf(":%d", promCfg.Port), Handler: mux}
		go func() {
			if err := a.metricsSrv.ListenAndServe(); err != nil && err != nethttp.ErrServerClosed {
				a.config.Logger.Warn("metrics 服务退出", "error", err)
			}
		}()
		a.config.Logger.Info("metrics 服务已启动", "port", promCfg.Port)
	}
	return a.hertz.Run()
}

// Shutdown 优雅关闭（传入 ctx 以支持超时，如 cmd 层 WithTimeout）
func (a *App) Shutdown(ctx context.Context) error {
	if a.otelProvider != nil {
		_ = a.otelProvider.Shutdown(ctx)
	}
	if a.metricsSrv != nil {
		_ = a.metricsSrv.Shutdown(ctx)
	}
	if a.hertz != nil {
		if err := a.hertz.Shutdown(ctx); err != nil {
			return err
		}
	}
	// Postgres run store 持有连接池，退出时关闭
	if closer, ok := a.config.RunStore.(interface{ Close() }); ok {
		closer.Close()
	}
	return nil
}
