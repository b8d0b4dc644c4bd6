package processor

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/checker/decls"
	"github.com/sirupsen/logrus"

	"github.com/haolipeng/route_traffic_analyzer/pkg/protocol"
	"github.com/haolipeng/route_traffic_analyzer/pkg/ruleEngine"
	"github.com/haolipeng/route_traffic_analyzer/pkg/types"
)

// 报文标签,协议规则按标签区分报文类型
const (
	RuleTagBGPUpdate = "UPDATE"
	RuleTagOSPFLSU   = "LSU"
)

// RuleEngine 用CEL表达式对解码后的路由协议字段做白/黑名单匹配
type RuleEngine struct {
	mu                     sync.RWMutex
	Env                    *cel.Env
	originWhitelistRules   map[string]map[string]*ruleEngine.ProtocolRule // 协议名 -> 报文标签 -> 规则
	compiledWhitelistRules map[string]map[string]cel.Program
	originBlacklistRules   map[string]map[string]*ruleEngine.ProtocolRule
	compiledBlacklistRules map[string]map[string]cel.Program
}

func NewRuleEngine(rules map[string]*ruleEngine.Rule) (*RuleEngine, error) {
	// 创建CEL环境,声明所有可能用到的变量
	env, err := cel.NewEnv(
		cel.Declarations(
			// 数据包通用字段
			decls.NewVar("packet.src_ip", decls.String),
			decls.NewVar("packet.dst_ip", decls.String),
			decls.NewVar("packet.length", decls.Int),
			decls.NewVar("packet.latency_ms", decls.Double),
			decls.NewVar("packet.throughput_mbps", decls.Double),

			// BGP UPDATE字段
			decls.NewVar("bgp.origin", decls.Int),
			decls.NewVar("bgp.med", decls.Int),
			decls.NewVar("bgp.next_hop", decls.String),
			decls.NewVar("bgp.as_path_length", decls.Int),
			decls.NewVar("bgp.first_asn", decls.Int),
			decls.NewVar("bgp.nlri_count", decls.Int),
			decls.NewVar("bgp.prefix", decls.String),

			// OSPF Router LSA字段
			decls.NewVar("ospf.version", decls.Int),
			decls.NewVar("ospf.srcrouter", decls.String),
			decls.NewVar("ospf.area_id", decls.String),
			decls.NewVar("ospf.link_state_id", decls.String),
			decls.NewVar("ospf.advrouter", decls.String),
			decls.NewVar("ospf.seqnum", decls.Int),
			decls.NewVar("ospf.link_count", decls.Int),
			decls.NewVar("ospf.metric", decls.Int),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env failed: %w", err)
	}

	engine := &RuleEngine{
		Env:                    env,
		originWhitelistRules:   make(map[string]map[string]*ruleEngine.ProtocolRule),
		compiledWhitelistRules: make(map[string]map[string]cel.Program),
		originBlacklistRules:   make(map[string]map[string]*ruleEngine.ProtocolRule),
		compiledBlacklistRules: make(map[string]map[string]cel.Program),
	}

	for ruleID, rule := range rules {
		if rule.State != "enable" {
			logrus.Debugf("Skipping disabled rule %s", ruleID)
			continue
		}
		switch rule.RuleMode {
		case "whitelist":
			if err := engine.addRule(rule, engine.originWhitelistRules, engine.compiledWhitelistRules); err != nil {
				return nil, fmt.Errorf("compile whitelist rule %s failed: %w", ruleID, err)
			}
		case "blacklist":
			if err := engine.addRule(rule, engine.originBlacklistRules, engine.compiledBlacklistRules); err != nil {
				return nil, fmt.Errorf("compile blacklist rule %s failed: %w", ruleID, err)
			}
		default:
			return nil, fmt.Errorf("rule %s has unknown mode %q", ruleID, rule.RuleMode)
		}
	}

	return engine, nil
}

// addRule 编译一条规则的所有协议子规则并登记
func (r *RuleEngine) addRule(rule *ruleEngine.Rule,
	origins map[string]map[string]*ruleEngine.ProtocolRule,
	compiled map[string]map[string]cel.Program) error {

	if _, exists := origins[rule.RuleProtocol]; !exists {
		origins[rule.RuleProtocol] = make(map[string]*ruleEngine.ProtocolRule)
		compiled[rule.RuleProtocol] = make(map[string]cel.Program)
	}

	for tag, protocolRule := range rule.ProtocolRules {
		program, err := compileRuleToProgram(r.Env, protocolRule.Expression)
		if err != nil {
			return fmt.Errorf("tag %s: %w", tag, err)
		}
		origins[rule.RuleProtocol][tag] = protocolRule
		compiled[rule.RuleProtocol][tag] = program
	}
	return nil
}

// compileRuleToProgram 编译CEL表达式并生成可执行程序
func compileRuleToProgram(env *cel.Env, expression string) (cel.Program, error) {
	if expression == "" {
		return nil, fmt.Errorf("expression is empty")
	}

	ast, iss := env.Compile(expression)
	if iss.Err() != nil {
		return nil, fmt.Errorf("compile expression failed: %w", iss.Err())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("create program failed: %w", err)
	}
	return program, nil
}

func (r *RuleEngine) Stage() types.Stage {
	return types.StageRuleEngineDetection
}

func (r *RuleEngine) Name() string {
	return "RuleEngine"
}

func (r *RuleEngine) CheckReady() error {
	if r.Env == nil {
		return fmt.Errorf("cel environment is not initialized")
	}
	return nil
}

// Process 规则引擎主处理流程:
// 1. 先匹配黑名单规则
// 2. 黑名单未匹配时再匹配白名单规则
// 3. 根据匹配结果决定处理动作(转发或告警)
func (r *RuleEngine) Process(ctx context.Context, in <-chan *types.Packet, wg *sync.WaitGroup) (<-chan *types.Packet, error) {
	out := make(chan *types.Packet, 1000)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				return
			case packet, ok := <-in:
				if !ok {
					return
				}
				if packet == nil {
					continue
				}

				r.match(packet)

				select {
				case out <- packet:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func (r *RuleEngine) match(packet *types.Packet) {
	// 解码失败的数据包不参与匹配,默认转发
	if packet.ParserResult == nil {
		packet.RuleResult = &types.RuleMatchResult{Action: types.ActionForward}
		return
	}

	protoName, tag := ruleKey(packet)
	vars := buildEvalVars(packet)

	r.mu.RLock()
	blacklistMatched, err := r.evalRuleSet(r.originBlacklistRules, r.compiledBlacklistRules, protoName, tag, vars, packet, true)
	r.mu.RUnlock()
	if err != nil {
		packet.LastError = err
	}

	if !blacklistMatched {
		r.mu.RLock()
		_, err := r.evalRuleSet(r.originWhitelistRules, r.compiledWhitelistRules, protoName, tag, vars, packet, false)
		r.mu.RUnlock()
		if err != nil {
			packet.LastError = err
		}
	}

	// 根据匹配结果决定动作
	if packet.RuleResult != nil {
		if packet.RuleResult.BlackRuleMatched {
			// 黑名单命中:可疑流量,触发告警
			packet.RuleResult.Action = types.ActionAlert
		} else {
			packet.RuleResult.Action = types.ActionForward
		}
	} else {
		// 没有适用的规则:默认转发
		packet.RuleResult = &types.RuleMatchResult{Action: types.ActionForward}
	}
}

// evalRuleSet 在给定规则集中查找并执行适用的规则,返回是否命中
func (r *RuleEngine) evalRuleSet(
	origins map[string]map[string]*ruleEngine.ProtocolRule,
	compiled map[string]map[string]cel.Program,
	protoName, tag string,
	vars map[string]interface{},
	packet *types.Packet,
	blacklist bool,
) (bool, error) {
	protocolRules, exists := origins[protoName]
	if !exists {
		return false, nil
	}
	programs, ok := compiled[protoName]
	if !ok {
		return false, nil
	}
	program, ok := programs[tag]
	if !ok {
		return false, nil
	}
	originalRule := protocolRules[tag]
	if originalRule == nil || originalRule.State != "enable" {
		return false, nil
	}

	matched, err := evaluateRule(program, vars)
	if err != nil {
		return false, fmt.Errorf("rule evaluation failed: %w", err)
	}

	if packet.RuleResult == nil {
		packet.RuleResult = &types.RuleMatchResult{}
	}
	if blacklist {
		packet.RuleResult.BlackRuleMatched = matched
		packet.RuleResult.BlackRule = originalRule
	} else {
		packet.RuleResult.WhiteRuleMatched = matched
		packet.RuleResult.WhiteRule = originalRule
	}
	return matched, nil
}

// evaluateRule 执行编译后的规则程序
func evaluateRule(program cel.Program, vars map[string]interface{}) (bool, error) {
	if program == nil {
		return false, fmt.Errorf("program is nil")
	}

	result, _, err := program.Eval(vars)
	if err != nil {
		return false, fmt.Errorf("evaluate rule failed: %w", err)
	}

	matched, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rule result is not boolean: %v", result.Value())
	}
	return matched, nil
}

// ruleKey 返回数据包对应的规则协议名和报文标签
func ruleKey(packet *types.Packet) (string, string) {
	switch packet.ParserResult.GetType() {
	case types.BGP:
		return "bgp", RuleTagBGPUpdate
	case types.OSPF:
		return "ospf", RuleTagOSPFLSU
	default:
		return "", ""
	}
}

// buildEvalVars 构建CEL评估变量
func buildEvalVars(packet *types.Packet) map[string]interface{} {
	vars := map[string]interface{}{
		"packet.src_ip":          packet.SrcIP,
		"packet.dst_ip":          packet.DstIP,
		"packet.length":          int64(packet.Length),
		"packet.latency_ms":      packet.LatencyMs,
		"packet.throughput_mbps": packet.ThroughputMbps,
	}

	switch result := packet.ParserResult.(type) {
	case *protocol.BGPUpdate:
		vars["bgp.origin"] = int64(result.Origin)
		vars["bgp.med"] = int64(result.MED)
		vars["bgp.next_hop"] = result.NextHop
		vars["bgp.as_path_length"] = int64(len(result.ASPath))
		if len(result.ASPath) > 0 {
			vars["bgp.first_asn"] = int64(result.ASPath[0])
		} else {
			vars["bgp.first_asn"] = int64(0)
		}
		vars["bgp.nlri_count"] = int64(len(result.NLRI))
		if len(result.NLRI) > 0 {
			vars["bgp.prefix"] = result.NLRI[0]
		} else {
			vars["bgp.prefix"] = ""
		}
	case *protocol.OSPFPacket:
		vars["ospf.version"] = int64(result.Version)
		vars["ospf.srcrouter"] = result.RouterID
		vars["ospf.area_id"] = result.AreaID
		if len(result.LSAs) > 0 {
			lsa := result.LSAs[0]
			vars["ospf.link_state_id"] = lsa.Header.LinkStateID
			vars["ospf.advrouter"] = lsa.Header.AdvRouter
			vars["ospf.seqnum"] = int64(lsa.Header.LSSeqNumber)
			vars["ospf.link_count"] = int64(len(lsa.Links))
			if len(lsa.Links) > 0 {
				vars["ospf.metric"] = int64(lsa.Links[0].Metric)
			}
		}
	}

	return vars
}
