package api

import (
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"

	"github.com/haolipeng/route_traffic_analyzer/pkg/dashboard"
	"github.com/haolipeng/route_traffic_analyzer/pkg/pipeline"
)

// 响应结构体
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// DashboardService 分析看板服务,对外暴露拓扑和流量分析结果
type DashboardService struct {
	dashboard *dashboard.Dashboard
	pipeline  pipeline.Pipeline
}

// NewDashboardService 创建一个新的看板服务
func NewDashboardService(d *dashboard.Dashboard, p pipeline.Pipeline) *DashboardService {
	return &DashboardService{
		dashboard: d,
		pipeline:  p,
	}
}

// GetSummary 获取完整的分析摘要
func (ds *DashboardService) GetSummary(c echo.Context) error {
	return c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "获取分析摘要成功",
		Data:    ds.dashboard.Summary(),
	})
}

// GetMarkdown 获取Markdown格式的看板文本
func (ds *DashboardService) GetMarkdown(c echo.Context) error {
	return c.String(http.StatusOK, ds.dashboard.ToMarkdown())
}

// GetNodes 获取拓扑中的所有节点
func (ds *DashboardService) GetNodes(c echo.Context) error {
	return c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "获取节点列表成功",
		Data:    ds.dashboard.Topology.Nodes(),
	})
}

// linkEntry 链路的JSON表示
type linkEntry struct {
	Src       string   `json:"src"`
	Dst       string   `json:"dst"`
	Metric    float64  `json:"metric"`
	Protocols []string `json:"protocols"`
}

// GetLinks 获取拓扑中的所有链路
func (ds *DashboardService) GetLinks(c echo.Context) error {
	entries := make([]linkEntry, 0)
	for link, meta := range ds.dashboard.Topology.Links() {
		protocols := make([]string, 0, len(meta.Protocols))
		for p := range meta.Protocols {
			protocols = append(protocols, p)
		}
		sort.Strings(protocols)
		entries = append(entries, linkEntry{
			Src:       link.Src,
			Dst:       link.Dst,
			Metric:    meta.Metric,
			Protocols: protocols,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Src != entries[j].Src {
			return entries[i].Src < entries[j].Src
		}
		return entries[i].Dst < entries[j].Dst
	})

	return c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "获取链路列表成功",
		Data:    entries,
	})
}

// GetShortestPath 计算两个节点之间的最短路径
func (ds *DashboardService) GetShortestPath(c echo.Context) error {
	src := c.QueryParam("src")
	dst := c.QueryParam("dst")
	if src == "" || dst == "" {
		return HandleError(c, NewBadRequestError("src和dst参数不能为空"))
	}

	path := ds.dashboard.Topology.ShortestPath(src, dst)
	if path == nil {
		return HandleError(c, NewAPIError(ErrCodeNotFound, "两节点之间不存在可达路径", nil))
	}

	return c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "计算最短路径成功",
		Data: map[string]interface{}{
			"src":  src,
			"dst":  dst,
			"path": path,
			"hops": len(path) - 1,
		},
	})
}

// GetPrefixOrigins 获取前缀到来源路由器的映射表
func (ds *DashboardService) GetPrefixOrigins(c echo.Context) error {
	return c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "获取前缀来源表成功",
		Data:    ds.dashboard.Topology.PrefixOrigins(),
	})
}

// GetBottlenecks 获取检测到的瓶颈链路
func (ds *DashboardService) GetBottlenecks(c echo.Context) error {
	bottlenecks := make([]dashboard.BottleneckSummary, 0)
	for _, entry := range ds.dashboard.Metrics.DetectBottlenecks() {
		bottlenecks = append(bottlenecks, dashboard.BottleneckSummary{
			Link:           entry.Link.Src + "->" + entry.Link.Dst,
			LatencyMs:      entry.LatencyMs,
			ThroughputMbps: entry.ThroughputMbps,
		})
	}
	sort.Slice(bottlenecks, func(i, j int) bool {
		return bottlenecks[i].Link < bottlenecks[j].Link
	})

	return c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "获取瓶颈链路成功",
		Data:    bottlenecks,
	})
}

// GetPipelineStatus 获取流水线当前状态
func (ds *DashboardService) GetPipelineStatus(c echo.Context) error {
	if ds.pipeline == nil {
		return HandleError(c, NewAPIError(ErrCodeNotFound, "流水线未启动", nil))
	}

	return c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "获取流水线状态成功",
		Data: map[string]interface{}{
			"status":  ds.pipeline.Status(),
			"metrics": ds.pipeline.GetMetrics(),
		},
	})
}
