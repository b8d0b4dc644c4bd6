package topology

import (
	"container/heap"
	"sort"
	"sync"

	"github.com/haolipeng/route_traffic_analyzer/pkg/protocol"
)

// Link 表示一条有向链路
type Link struct {
	Src string
	Dst string
}

// LinkMetadata 记录链路的度量值和通告该链路的协议集合
type LinkMetadata struct {
	Metric    float64
	Protocols map[string]struct{}
}

// Topology 根据BGP/OSPF通告增量构建网络拓扑图
type Topology struct {
	mu            sync.RWMutex
	nodes         map[string]struct{}
	links         map[Link]*LinkMetadata
	prefixOrigins map[string]string // 前缀 -> 下一跳
}

func New() *Topology {
	return &Topology{
		nodes:         make(map[string]struct{}),
		links:         make(map[Link]*LinkMetadata),
		prefixOrigins: make(map[string]string),
	}
}

// AddLink 添加或更新一条链路,保留已知的最小度量值
func (t *Topology) AddLink(src, dst string, metric float64, proto string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nodes[src] = struct{}{}
	t.nodes[dst] = struct{}{}

	link := Link{Src: src, Dst: dst}
	meta, exists := t.links[link]
	if !exists {
		meta = &LinkMetadata{Metric: metric, Protocols: make(map[string]struct{})}
		t.links[link] = meta
	} else if metric < meta.Metric {
		meta.Metric = metric
	}
	meta.Protocols[proto] = struct{}{}
}

// ApplyBGPUpdate 将一条BGP UPDATE通告并入拓扑
func (t *Topology) ApplyBGPUpdate(sourceRouter string, update *protocol.BGPUpdate) {
	if update == nil {
		return
	}
	t.mu.Lock()
	t.nodes[sourceRouter] = struct{}{}
	t.mu.Unlock()

	if update.NextHop != "" {
		t.AddLink(sourceRouter, update.NextHop, 1.0, "BGP")
		for _, prefix := range update.NLRI {
			t.mu.Lock()
			t.prefixOrigins[prefix] = update.NextHop
			t.mu.Unlock()
		}
	}
}

// ApplyOSPFLSA 将一条Router LSA的所有链路并入拓扑
func (t *Topology) ApplyOSPFLSA(lsa *protocol.OSPFRouterLSA) {
	if lsa == nil {
		return
	}
	t.mu.Lock()
	t.nodes[lsa.Header.AdvRouter] = struct{}{}
	t.mu.Unlock()

	for _, link := range lsa.Links {
		cost := float64(link.Metric)
		if cost < 1 {
			cost = 1
		}
		t.AddLink(lsa.Header.AdvRouter, link.LinkID, cost, "OSPF")
	}
}

// Nodes 返回排序后的节点列表
func (t *Topology) Nodes() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	nodes := make([]string, 0, len(t.nodes))
	for node := range t.nodes {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	return nodes
}

// Links 返回链路及其元数据的快照
func (t *Topology) Links() map[Link]LinkMetadata {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snapshot := make(map[Link]LinkMetadata, len(t.links))
	for link, meta := range t.links {
		protocols := make(map[string]struct{}, len(meta.Protocols))
		for p := range meta.Protocols {
			protocols[p] = struct{}{}
		}
		snapshot[link] = LinkMetadata{Metric: meta.Metric, Protocols: protocols}
	}
	return snapshot
}

// PrefixOrigin 返回通告该前缀的下一跳
func (t *Topology) PrefixOrigin(prefix string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	origin, ok := t.prefixOrigins[prefix]
	return origin, ok
}

// PrefixOrigins 返回前缀来源表的快照
func (t *Topology) PrefixOrigins() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snapshot := make(map[string]string, len(t.prefixOrigins))
	for prefix, origin := range t.prefixOrigins {
		snapshot[prefix] = origin
	}
	return snapshot
}

// Adjacency 返回每个节点的出向邻居
func (t *Topology) Adjacency() map[string][]string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	neighbours := make(map[string][]string)
	for link := range t.links {
		neighbours[link.Src] = append(neighbours[link.Src], link.Dst)
	}
	for _, list := range neighbours {
		sort.Strings(list)
	}
	return neighbours
}

// ShortestPath 用Dijkstra算法计算按度量值最短的路径,
// 不可达或节点未知时返回nil
func (t *Topology) ShortestPath(src, dst string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if _, ok := t.nodes[src]; !ok {
		return nil
	}
	if _, ok := t.nodes[dst]; !ok {
		return nil
	}

	queue := &pathQueue{{cost: 0, node: src, path: []string{src}}}
	heap.Init(queue)
	visited := map[string]float64{src: 0}

	for queue.Len() > 0 {
		item := heap.Pop(queue).(pathItem)
		if item.node == dst {
			return item.path
		}
		for link, meta := range t.links {
			if link.Src != item.node {
				continue
			}
			cost := item.cost + meta.Metric
			if known, ok := visited[link.Dst]; !ok || cost < known {
				visited[link.Dst] = cost
				path := append(append([]string(nil), item.path...), link.Dst)
				heap.Push(queue, pathItem{cost: cost, node: link.Dst, path: path})
			}
		}
	}
	return nil
}

type pathItem struct {
	cost float64
	node string
	path []string
}

type pathQueue []pathItem

func (q pathQueue) Len() int            { return len(q) }
func (q pathQueue) Less(i, j int) bool  { return q[i].cost < q[j].cost }
func (q pathQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *pathQueue) Push(x interface{}) { *q = append(*q, x.(pathItem)) }
func (q *pathQueue) Pop() interface{} {
	old := *q
	item := old[len(old)-1]
	*q = old[:len(old)-1]
	return item
}
