package processor

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haolipeng/route_traffic_analyzer/pkg/protocol"
	"github.com/haolipeng/route_traffic_analyzer/pkg/types"
)

func encodedBGPPacket(t *testing.T) *types.Packet {
	t.Helper()
	buf := make([]byte, protocol.MinBufferSize)
	n, err := protocol.EncodeBGPUpdate(buf, "10.10.0.0/16", "10.0.0.1")
	require.NoError(t, err)

	return &types.Packet{
		ID:              "bgp-1",
		PayloadProtocol: "BGP",
		Length:          n,
		RawData:         buf[:n],
		Features:        make(map[string]interface{}),
	}
}

func encodedOSPFPacket(t *testing.T) *types.Packet {
	t.Helper()
	buf := make([]byte, protocol.MinBufferSize)
	n, err := protocol.EncodeOSPFRouterLSA(buf, "10.0.0.1", "10.0.0.2", 12)
	require.NoError(t, err)

	return &types.Packet{
		ID:              "ospf-1",
		PayloadProtocol: "OSPF",
		Length:          n,
		RawData:         buf[:n],
		Features:        make(map[string]interface{}),
	}
}

// TestParsePacketBGP BGP载荷应解码为BGPUpdate
func TestParsePacketBGP(t *testing.T) {
	parser := NewProtocolParser(1)
	packet := encodedBGPPacket(t)

	require.NoError(t, parser.ParsePacket(packet))

	update, ok := packet.ParserResult.(*protocol.BGPUpdate)
	require.True(t, ok, "解析结果类型应为BGPUpdate")
	assert.Equal(t, "10.0.0.1", update.NextHop)
	assert.Equal(t, []string{"10.10.0.0/16"}, update.NLRI)
	assert.Equal(t, types.BGP, update.GetType())
}

// TestParsePacketOSPF OSPF载荷应解码为OSPFPacket
func TestParsePacketOSPF(t *testing.T) {
	parser := NewProtocolParser(1)
	packet := encodedOSPFPacket(t)

	require.NoError(t, parser.ParsePacket(packet))

	pkt, ok := packet.ParserResult.(*protocol.OSPFPacket)
	require.True(t, ok, "解析结果类型应为OSPFPacket")
	assert.Equal(t, "10.0.0.1", pkt.RouterID)
	require.Len(t, pkt.LSAs, 1)
	require.Len(t, pkt.LSAs[0].Links, 1)
	assert.Equal(t, uint16(12), pkt.LSAs[0].Links[0].Metric)
}

// TestParsePacketUnknownProtocol 未知协议应报错
func TestParsePacketUnknownProtocol(t *testing.T) {
	parser := NewProtocolParser(1)
	packet := &types.Packet{ID: "x", PayloadProtocol: "ICMP", RawData: []byte{1}}

	assert.Error(t, parser.ParsePacket(packet))
}

// TestProtocolParserProcess 解析失败的数据包带着错误继续流转
func TestProtocolParserProcess(t *testing.T) {
	parser := NewProtocolParser(2)

	bad := &types.Packet{
		ID:              "bad-1",
		PayloadProtocol: "BGP",
		RawData:         []byte{0x01, 0x02},
		Features:        make(map[string]interface{}),
	}

	in := make(chan *types.Packet, 2)
	in <- encodedBGPPacket(t)
	in <- bad
	close(in)

	var wg sync.WaitGroup
	out, err := parser.Process(context.Background(), in, &wg)
	require.NoError(t, err)

	results := make(map[string]*types.Packet)
	for packet := range out {
		results[packet.ID] = packet
	}
	wg.Wait()

	require.Len(t, results, 2)
	assert.NotNil(t, results["bgp-1"].ParserResult)
	assert.Nil(t, results["bad-1"].ParserResult, "坏载荷不应有解析结果")
	assert.Error(t, results["bad-1"].LastError)
}
