package api

import (
	"context"
	"fmt"

	"github.com/haolipeng/route_traffic_analyzer/pkg/config"
	"github.com/labstack/echo/v4"
)

// Server HTTP 服务器
type Server struct {
	echo *echo.Echo
	addr string
}

// NewServer 创建一个新的 HTTP 服务器
func NewServer(cfg *config.Config) *Server {
	e := echo.New()
	e.HideBanner = true

	// 构建地址
	addr := fmt.Sprintf("%s:%s", cfg.API.Host, cfg.API.Port)

	return &Server{
		echo: e,
		addr: addr,
	}
}

// Start 启动 HTTP 服务器
func (s *Server) Start() error {
	return s.echo.Start(s.addr)
}

// Stop 停止 HTTP 服务器
func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// GetEcho 获取Echo实例
func (s *Server) GetEcho() *echo.Echo {
	return s.echo
}

// RegisterDashboardService 注册分析看板服务
func (s *Server) RegisterDashboardService(ds *DashboardService) {
	// 注册路由
	s.echo.GET("/dashboard/summary", ds.GetSummary)       // 获取分析摘要
	s.echo.GET("/dashboard/markdown", ds.GetMarkdown)     // 获取Markdown格式看板
	s.echo.GET("/topology/nodes", ds.GetNodes)            // 获取拓扑节点
	s.echo.GET("/topology/links", ds.GetLinks)            // 获取拓扑链路
	s.echo.GET("/topology/path", ds.GetShortestPath)      // 计算最短路径
	s.echo.GET("/topology/prefixes", ds.GetPrefixOrigins) // 获取前缀来源表
	s.echo.GET("/metrics/bottlenecks", ds.GetBottlenecks) // 获取瓶颈链路
	s.echo.GET("/pipeline/status", ds.GetPipelineStatus)  // 获取流水线状态
}
