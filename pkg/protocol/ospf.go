package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/haolipeng/route_traffic_analyzer/pkg/types"
)

// OSPFv2报文常量,参考RFC 2328
const (
	OSPFVersion2          = 2
	OSPFTypeLSU           = 4 // Link-State Update
	LSATypeRouter         = 1
	LinkTypePointToPoint  = 1
	lsaHeaderLen          = 20
	ospfHeaderLen         = 24
	initialSequenceNumber = 0x80000001
)

// 点对点链路的固定子网掩码,不从前缀推导
var fixedLinkMask = [4]byte{255, 255, 255, 0}

// EncodeOSPFRouterLSA 编码一个携带单条Router LSA的OSPF链路状态更新报文,
// LSA描述一条到邻居的点对点链路。返回写入的字节数。
// buf容量必须不小于MinBufferSize。不计算校验和,不模拟认证
func EncodeOSPFRouterLSA(buf []byte, routerIP, neighborIP string, metric uint16) (int, error) {
	if len(buf) < MinBufferSize {
		return 0, fmt.Errorf("encode ospf router lsa: %w", ErrShortBuffer)
	}

	routerAddr, err := parseIPv4(routerIP)
	if err != nil {
		return 0, fmt.Errorf("encode ospf router lsa: router: %w", err)
	}
	neighborAddr, err := parseIPv4(neighborIP)
	if err != nil {
		return 0, fmt.Errorf("encode ospf router lsa: neighbor: %w", err)
	}

	w := NewWriter(buf)

	// OSPF报文头
	w.Uint8(OSPFVersion2)
	w.Uint8(OSPFTypeLSU)
	pktLen := w.Reserve16()
	w.PutBytes(routerAddr)      // Router ID
	w.Uint32(0)                 // Area ID,只模拟骨干区域
	w.Uint16(0)                 // 校验和
	w.Uint16(0)                 // AuType
	w.PutBytes(make([]byte, 8)) // 认证数据

	// LSU: 单条LSA
	w.Uint32(1)

	// LSA头部
	w.Uint16(1) // LS age
	w.Uint8(0)  // options
	w.Uint8(LSATypeRouter)
	w.PutBytes(neighborAddr) // Link State ID
	w.PutBytes(routerAddr)   // Advertising Router
	w.Uint32(initialSequenceNumber)
	w.Uint16(0) // LSA校验和
	lsaLen := w.Reserve16()

	// LSA体: flags + 链路数 + 一条点对点链路描述
	bodyStart := w.Len()
	w.Uint8(0)
	w.Uint8(0)
	w.Uint16(1)
	w.PutBytes(neighborAddr) // Link ID
	w.PutBytes(fixedLinkMask[:])
	w.Uint8(LinkTypePointToPoint)
	w.Uint8(0) // TOS数量
	w.Uint16(metric)

	// LSA长度包含20字节LSA头
	if err := lsaLen.Patch(uint16(w.Len()-bodyStart) + lsaHeaderLen); err != nil {
		return 0, err
	}
	if err := pktLen.Patch(uint16(w.Len())); err != nil {
		return 0, err
	}
	return w.Len(), nil
}

// LSAHeader LSA头部
type LSAHeader struct {
	LSAge       uint16
	Options     uint8
	LSType      uint8
	LinkStateID string
	AdvRouter   string
	LSSeqNumber uint32
	LSChecksum  uint16
	Length      uint16
}

// OSPFRouterLink Router LSA中的一条链路描述
type OSPFRouterLink struct {
	LinkID   string
	LinkData string
	Type     uint8
	TOSCount uint8
	Metric   uint16
}

// OSPFRouterLSA 解码后的Router LSA
type OSPFRouterLSA struct {
	Header LSAHeader
	Flags  uint8
	Links  []OSPFRouterLink
}

// OSPFPacket 解码后的OSPF链路状态更新报文
type OSPFPacket struct {
	Version   uint8
	Type      uint8
	PacketLen uint16
	RouterID  string
	AreaID    string
	Checksum  uint16
	AuType    uint16
	NumLSAs   uint32
	LSAs      []OSPFRouterLSA
}

// GetType 实现PacketResult接口
func (p *OSPFPacket) GetType() types.PacketType {
	return types.OSPF
}

// ParseOSPFRouterLSA 解码一个OSPF链路状态更新报文,只支持Router LSA
func ParseOSPFRouterLSA(payload []byte) (*OSPFPacket, error) {
	if len(payload) < ospfHeaderLen+4 {
		return nil, fmt.Errorf("parse ospf lsu: header: %w", ErrTruncated)
	}
	if payload[0] != OSPFVersion2 {
		return nil, fmt.Errorf("parse ospf lsu: unsupported version %d: %w", payload[0], ErrBadMessage)
	}
	if payload[1] != OSPFTypeLSU {
		return nil, fmt.Errorf("parse ospf lsu: unsupported type %d: %w", payload[1], ErrBadMessage)
	}

	pkt := &OSPFPacket{
		Version:   payload[0],
		Type:      payload[1],
		PacketLen: binary.BigEndian.Uint16(payload[2:]),
		RouterID:  ipString(payload[4:8]),
		AreaID:    ipString(payload[8:12]),
		Checksum:  binary.BigEndian.Uint16(payload[12:]),
		AuType:    binary.BigEndian.Uint16(payload[14:]),
	}
	if int(pkt.PacketLen) != len(payload) {
		return nil, fmt.Errorf("parse ospf lsu: length %d != payload %d: %w",
			pkt.PacketLen, len(payload), ErrBadMessage)
	}

	off := ospfHeaderLen
	pkt.NumLSAs = binary.BigEndian.Uint32(payload[off:])
	off += 4

	for i := uint32(0); i < pkt.NumLSAs; i++ {
		lsa, next, err := parseRouterLSA(payload, off)
		if err != nil {
			return nil, err
		}
		pkt.LSAs = append(pkt.LSAs, *lsa)
		off = next
	}
	if off != len(payload) {
		return nil, fmt.Errorf("parse ospf lsu: trailing bytes: %w", ErrBadMessage)
	}
	return pkt, nil
}

func parseRouterLSA(data []byte, off int) (*OSPFRouterLSA, int, error) {
	if len(data)-off < lsaHeaderLen {
		return nil, off, fmt.Errorf("parse router lsa: header: %w", ErrTruncated)
	}
	header := LSAHeader{
		LSAge:       binary.BigEndian.Uint16(data[off:]),
		Options:     data[off+2],
		LSType:      data[off+3],
		LinkStateID: ipString(data[off+4 : off+8]),
		AdvRouter:   ipString(data[off+8 : off+12]),
		LSSeqNumber: binary.BigEndian.Uint32(data[off+12:]),
		LSChecksum:  binary.BigEndian.Uint16(data[off+16:]),
		Length:      binary.BigEndian.Uint16(data[off+18:]),
	}
	if header.LSType != LSATypeRouter {
		return nil, off, fmt.Errorf("parse router lsa: unsupported LSA type %d: %w",
			header.LSType, ErrBadMessage)
	}
	if int(header.Length) < lsaHeaderLen+4 || len(data)-off < int(header.Length) {
		return nil, off, fmt.Errorf("parse router lsa: body: %w", ErrTruncated)
	}

	body := data[off+lsaHeaderLen : off+int(header.Length)]
	lsa := &OSPFRouterLSA{Header: header, Flags: body[0]}
	linkCount := int(binary.BigEndian.Uint16(body[2:]))
	pos := 4
	for i := 0; i < linkCount; i++ {
		if len(body)-pos < 12 {
			return nil, off, fmt.Errorf("parse router lsa: link %d: %w", i, ErrTruncated)
		}
		lsa.Links = append(lsa.Links, OSPFRouterLink{
			LinkID:   ipString(body[pos : pos+4]),
			LinkData: ipString(body[pos+4 : pos+8]),
			Type:     body[pos+8],
			TOSCount: body[pos+9],
			Metric:   binary.BigEndian.Uint16(body[pos+10:]),
		})
		pos += 12
	}
	return lsa, off + int(header.Length), nil
}

func ipString(b []byte) string {
	return fmt.Sprintf("%d.%d.%d.%d", b[0], b[1], b[2], b[3])
}
