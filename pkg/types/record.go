package types

import (
	"encoding/hex"
	"fmt"
)

// CaptureRecord 是NDJSON捕获文件中一行记录的结构,
// 与C模拟器的输出格式保持一致
type CaptureRecord struct {
	Timestamp         float64 `json:"timestamp"`
	SrcIP             string  `json:"src_ip"`
	DstIP             string  `json:"dst_ip"`
	TransportProtocol string  `json:"transport_protocol"`
	PayloadProtocol   string  `json:"payload_protocol"`
	Length            int     `json:"length"`
	LatencyMs         float64 `json:"latency_ms"`
	ThroughputMbps    float64 `json:"throughput_mbps"`
	PayloadHex        string  `json:"payload_hex"`
}

// ToPacket 将记录转换为流水线数据包
func (r *CaptureRecord) ToPacket(id string) (*Packet, error) {
	payload, err := hex.DecodeString(r.PayloadHex)
	if err != nil {
		return nil, fmt.Errorf("decode payload_hex: %w", err)
	}
	length := r.Length
	if length == 0 {
		length = len(payload)
	}
	return &Packet{
		ID:                id,
		Timestamp:         r.Timestamp,
		SrcIP:             r.SrcIP,
		DstIP:             r.DstIP,
		TransportProtocol: r.TransportProtocol,
		PayloadProtocol:   r.PayloadProtocol,
		Length:            length,
		RawData:           payload,
		LatencyMs:         r.LatencyMs,
		ThroughputMbps:    r.ThroughputMbps,
		Features:          make(map[string]interface{}),
	}, nil
}

// NewCaptureRecord 将流水线数据包转换为可序列化的记录,
// payload_hex保留编码字节的逐字节原样
func NewCaptureRecord(p *Packet) *CaptureRecord {
	return &CaptureRecord{
		Timestamp:         p.Timestamp,
		SrcIP:             p.SrcIP,
		DstIP:             p.DstIP,
		TransportProtocol: p.TransportProtocol,
		PayloadProtocol:   p.PayloadProtocol,
		Length:            p.Length,
		LatencyMs:         p.LatencyMs,
		ThroughputMbps:    p.ThroughputMbps,
		PayloadHex:        hex.EncodeToString(p.RawData),
	}
}
