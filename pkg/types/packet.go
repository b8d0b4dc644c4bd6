package types

// Packet 表示处理流水线中传递的一条合成流量记录
type Packet struct {
	ID                string
	Timestamp         float64 // 捕获时间戳,单位为秒
	SrcIP             string
	DstIP             string
	TransportProtocol string // "TCP" / "IP"
	PayloadProtocol   string // "BGP" / "OSPF"
	Length            int
	RawData           []byte // 编码后的协议载荷
	LatencyMs         float64
	ThroughputMbps    float64
	Features          map[string]interface{}
	ParserResult      PacketResult // 协议解析结果

	RuleResult *RuleMatchResult // 规则匹配结果
	LastError  error
}

type PacketType uint8

const (
	BGP  PacketType = 1
	OSPF PacketType = 2
)

type PacketResult interface {
	GetType() PacketType
}

// Stage 表示处理阶段的状态
type Stage int

const (
	StageProtocolParsing        Stage = iota + 1 //协议解析
	StageBasicFeatureExtraction                  //基础特征提取
	StageRuleEngineDetection                     //规则引擎检测
	StageTopologyConstruction                    //拓扑构建
)
