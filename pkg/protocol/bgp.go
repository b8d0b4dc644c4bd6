package protocol

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/haolipeng/route_traffic_analyzer/pkg/types"
)

// BGP UPDATE报文常量,参考RFC 4271
const (
	bgpMarkerLen  = 16
	bgpHeaderLen  = 19
	BGPTypeUpdate = 2

	attrFlagWellKnown   = 0x40 // well-known transitive
	attrFlagOptional    = 0x80 // optional non-transitive
	attrFlagExtendedLen = 0x10

	AttrTypeOrigin  = 1
	AttrTypeASPath  = 2
	AttrTypeNextHop = 3
	AttrTypeMED     = 4

	OriginIGP = 0

	asSegmentSequence = 2
)

// 固定的两跳AS路径和MED值,模拟器不做参数化
var fixedASPath = [2]uint16{65001, 65002}

const fixedMED = 25

// EncodeBGPUpdate 编码一条通告单个IPv4前缀的BGP UPDATE报文,
// 返回写入的字节数。buf容量必须不小于MinBufferSize。
// prefixCIDR形如"10.0.0.0/24",缺省掩码时按/0处理
func EncodeBGPUpdate(buf []byte, prefixCIDR, nextHop string) (int, error) {
	if len(buf) < MinBufferSize {
		return 0, fmt.Errorf("encode bgp update: %w", ErrShortBuffer)
	}

	prefixAddr, prefixLen, err := parseCIDR(prefixCIDR)
	if err != nil {
		return 0, fmt.Errorf("encode bgp update: %w", err)
	}
	hopAddr, err := parseIPv4(nextHop)
	if err != nil {
		return 0, fmt.Errorf("encode bgp update: next hop: %w", err)
	}

	w := NewWriter(buf)

	// 报文头:16字节全1同步标记 + 总长度占位 + 类型
	for i := 0; i < bgpMarkerLen; i++ {
		w.Uint8(0xff)
	}
	totalLen := w.Reserve16()
	w.Uint8(BGPTypeUpdate)

	// 不模拟撤销路由
	w.Uint16(0)

	attrLen := w.Reserve16()
	attrStart := w.Len()

	// ORIGIN: IGP
	w.Uint8(attrFlagWellKnown)
	w.Uint8(AttrTypeOrigin)
	w.Uint8(1)
	w.Uint8(OriginIGP)

	// AS_PATH: 一个AS_SEQUENCE段,两个ASN
	w.Uint8(attrFlagWellKnown)
	w.Uint8(AttrTypeASPath)
	w.Uint8(6)
	w.Uint8(asSegmentSequence)
	w.Uint8(uint8(len(fixedASPath)))
	for _, asn := range fixedASPath {
		w.Uint16(asn)
	}

	// NEXT_HOP
	w.Uint8(attrFlagWellKnown)
	w.Uint8(AttrTypeNextHop)
	w.Uint8(4)
	w.PutBytes(hopAddr)

	// MULTI_EXIT_DISC
	w.Uint8(attrFlagOptional)
	w.Uint8(AttrTypeMED)
	w.Uint8(4)
	w.Uint32(fixedMED)

	if err := attrLen.Patch(uint16(w.Len() - attrStart)); err != nil {
		return 0, err
	}

	// NLRI: 前缀长度 + ⌈len/8⌉个地址字节,不清零末字节的多余位
	w.Uint8(uint8(prefixLen))
	w.PutBytes(prefixAddr[:(prefixLen+7)/8])

	if err := totalLen.Patch(uint16(w.Len())); err != nil {
		return 0, err
	}
	return w.Len(), nil
}

// BGPPathAttribute 表示一条解码后的路径属性
type BGPPathAttribute struct {
	Flags    uint8
	TypeCode uint8
	Raw      []byte
}

// BGPUpdate 表示从BGP UPDATE报文中解码出的信息子集
type BGPUpdate struct {
	Length          uint16
	WithdrawnRoutes []string
	PathAttrLen     uint16
	Attributes      []BGPPathAttribute
	Origin          uint8
	ASPath          []uint16
	NextHop         string
	MED             uint32
	HasMED          bool
	NLRI            []string
}

// GetType 实现PacketResult接口
func (u *BGPUpdate) GetType() types.PacketType {
	return types.BGP
}

// Attribute 按类型码查找属性
func (u *BGPUpdate) Attribute(typeCode uint8) *BGPPathAttribute {
	for i := range u.Attributes {
		if u.Attributes[i].TypeCode == typeCode {
			return &u.Attributes[i]
		}
	}
	return nil
}

// ParseBGPUpdate 解码一条BGP UPDATE报文
// 模拟器只产生IPv4的UPDATE,解码器覆盖RFC 4271的对应子集
func ParseBGPUpdate(payload []byte) (*BGPUpdate, error) {
	if len(payload) < bgpHeaderLen+4 {
		return nil, fmt.Errorf("parse bgp update: header: %w", ErrTruncated)
	}
	for _, b := range payload[:bgpMarkerLen] {
		if b != 0xff {
			return nil, fmt.Errorf("parse bgp update: bad marker: %w", ErrBadMessage)
		}
	}
	length := binary.BigEndian.Uint16(payload[16:18])
	if int(length) != len(payload) {
		return nil, fmt.Errorf("parse bgp update: length %d != payload %d: %w",
			length, len(payload), ErrBadMessage)
	}
	if payload[18] != BGPTypeUpdate {
		return nil, fmt.Errorf("parse bgp update: unsupported type %d: %w", payload[18], ErrBadMessage)
	}

	update := &BGPUpdate{Length: length}
	off := bgpHeaderLen

	withdrawnLen := int(binary.BigEndian.Uint16(payload[off:]))
	off += 2
	if off+withdrawnLen > len(payload) {
		return nil, fmt.Errorf("parse bgp update: withdrawn routes: %w", ErrTruncated)
	}
	var err error
	update.WithdrawnRoutes, off, err = parseNLRI(payload, off, withdrawnLen)
	if err != nil {
		return nil, err
	}

	if off+2 > len(payload) {
		return nil, fmt.Errorf("parse bgp update: attribute length: %w", ErrTruncated)
	}
	update.PathAttrLen = binary.BigEndian.Uint16(payload[off:])
	off += 2
	off, err = parsePathAttributes(payload, off, int(update.PathAttrLen), update)
	if err != nil {
		return nil, err
	}

	update.NLRI, off, err = parseNLRI(payload, off, len(payload)-off)
	if err != nil {
		return nil, err
	}
	if off != len(payload) {
		return nil, fmt.Errorf("parse bgp update: trailing bytes: %w", ErrBadMessage)
	}
	return update, nil
}

// parseNLRI 解码length个字节内的前缀列表,返回新的偏移
func parseNLRI(data []byte, off, length int) ([]string, int, error) {
	end := off + length
	var prefixes []string
	for off < end {
		prefixLen := int(data[off])
		off++
		byteLen := (prefixLen + 7) / 8
		if off+byteLen > end {
			return nil, off, fmt.Errorf("parse nlri: %w", ErrTruncated)
		}
		var addr [4]byte
		copy(addr[:], data[off:off+byteLen])
		off += byteLen
		prefixes = append(prefixes, fmt.Sprintf("%s/%d", net.IP(addr[:]).String(), prefixLen))
	}
	return prefixes, off, nil
}

func parsePathAttributes(data []byte, off, length int, update *BGPUpdate) (int, error) {
	end := off + length
	if end > len(data) {
		return off, fmt.Errorf("parse path attributes: %w", ErrTruncated)
	}
	for off < end {
		if end-off < 2 {
			return off, fmt.Errorf("parse path attributes: header: %w", ErrTruncated)
		}
		flags := data[off]
		typeCode := data[off+1]
		off += 2

		var attrLen int
		if flags&attrFlagExtendedLen != 0 {
			if end-off < 2 {
				return off, fmt.Errorf("parse path attributes: extended length: %w", ErrTruncated)
			}
			attrLen = int(binary.BigEndian.Uint16(data[off:]))
			off += 2
		} else {
			if end-off < 1 {
				return off, fmt.Errorf("parse path attributes: length: %w", ErrTruncated)
			}
			attrLen = int(data[off])
			off++
		}
		if end-off < attrLen {
			return off, fmt.Errorf("parse path attributes: value: %w", ErrTruncated)
		}
		raw := data[off : off+attrLen]
		off += attrLen

		update.Attributes = append(update.Attributes, BGPPathAttribute{
			Flags:    flags,
			TypeCode: typeCode,
			Raw:      raw,
		})
		if err := decodeAttributeValue(typeCode, raw, update); err != nil {
			return off, err
		}
	}
	return off, nil
}

func decodeAttributeValue(typeCode uint8, raw []byte, update *BGPUpdate) error {
	switch typeCode {
	case AttrTypeOrigin:
		if len(raw) != 1 {
			return fmt.Errorf("decode origin: want 1 byte, got %d: %w", len(raw), ErrBadMessage)
		}
		update.Origin = raw[0]
	case AttrTypeASPath:
		off := 0
		for off < len(raw) {
			if len(raw)-off < 2 {
				return fmt.Errorf("decode as_path: segment header: %w", ErrTruncated)
			}
			segType := raw[off]
			segLen := int(raw[off+1])
			off += 2
			if segType != 1 && segType != asSegmentSequence {
				return fmt.Errorf("decode as_path: segment type %d: %w", segType, ErrBadMessage)
			}
			if len(raw)-off < segLen*2 {
				return fmt.Errorf("decode as_path: segment body: %w", ErrTruncated)
			}
			for i := 0; i < segLen; i++ {
				update.ASPath = append(update.ASPath, binary.BigEndian.Uint16(raw[off:]))
				off += 2
			}
		}
	case AttrTypeNextHop:
		if len(raw) != 4 {
			return fmt.Errorf("decode next_hop: want 4 bytes, got %d: %w", len(raw), ErrBadMessage)
		}
		update.NextHop = net.IP(raw).String()
	case AttrTypeMED:
		if len(raw) != 4 {
			return fmt.Errorf("decode med: want 4 bytes, got %d: %w", len(raw), ErrBadMessage)
		}
		update.MED = binary.BigEndian.Uint32(raw)
		update.HasMED = true
	}
	return nil
}

// parseIPv4 将点分十进制地址解析为4个原始字节
func parseIPv4(s string) ([]byte, error) {
	ip := net.ParseIP(s)
	if ip == nil {
		return nil, fmt.Errorf("%q: %w", s, ErrInvalidAddress)
	}
	v4 := ip.To4()
	if v4 == nil {
		return nil, fmt.Errorf("%q: %w", s, ErrInvalidAddress)
	}
	return v4, nil
}

// parseCIDR 解析"address/length"形式的前缀,缺省长度按0处理
func parseCIDR(s string) ([]byte, int, error) {
	addrPart, lenPart, found := strings.Cut(s, "/")
	prefixLen := 0
	if found {
		n, err := strconv.Atoi(lenPart)
		if err != nil {
			return nil, 0, fmt.Errorf("%q: %w", s, ErrInvalidPrefixLength)
		}
		prefixLen = n
	}
	if prefixLen < 0 || prefixLen > 32 {
		return nil, 0, fmt.Errorf("%q: %w", s, ErrInvalidPrefixLength)
	}
	addr, err := parseIPv4(addrPart)
	if err != nil {
		return nil, 0, err
	}
	return addr, prefixLen, nil
}
