package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEncodeBGPUpdateLayout 验证示例报文的逐字段布局
func TestEncodeBGPUpdateLayout(t *testing.T) {
	buf := make([]byte, MinBufferSize)
	n, err := EncodeBGPUpdate(buf, "10.0.0.0/24", "198.51.100.1")
	require.NoError(t, err)

	// 16(标记)+2(长度)+1(类型)+2(撤销)+2(属性长度)+4(ORIGIN)+9(AS_PATH)
	// +7(NEXT_HOP)+7(MED)+4(NLRI:1字节长度+3字节前缀) = 54
	assert.Equal(t, 54, n, "报文总长度不匹配")

	// 同步标记全1
	for i := 0; i < 16; i++ {
		assert.Equal(t, byte(0xff), buf[i], "标记字节 %d 应为0xff", i)
	}

	assert.Equal(t, []byte{0x00, 0x36}, buf[16:18], "总长度字段应等于54")
	assert.Equal(t, byte(BGPTypeUpdate), buf[18], "消息类型应为UPDATE")
	assert.Equal(t, []byte{0x00, 0x00}, buf[19:21], "撤销路由长度应为0")
	assert.Equal(t, []byte{0x00, 0x1b}, buf[21:23], "路径属性长度应为27")

	// ORIGIN: flags 0x40, type 1, len 1, value IGP
	assert.Equal(t, []byte{0x40, 0x01, 0x01, 0x00}, buf[23:27])
	// AS_PATH: AS_SEQUENCE段,两个ASN 65001/65002
	assert.Equal(t, []byte{0x40, 0x02, 0x06, 0x02, 0x02, 0xfd, 0xe9, 0xfd, 0xea}, buf[27:36])
	// NEXT_HOP: 198.51.100.1
	assert.Equal(t, []byte{0x40, 0x03, 0x04, 198, 51, 100, 1}, buf[36:43])
	// MED: optional non-transitive,固定值25
	assert.Equal(t, []byte{0x80, 0x04, 0x04, 0x00, 0x00, 0x00, 0x19}, buf[43:50])

	// NLRI尾部: 前缀长度24 + 3个地址字节
	assert.Equal(t, []byte{24, 10, 0, 0}, buf[n-4:n], "NLRI尾部不匹配")
}

// TestEncodeBGPUpdateRoundTrip 编码后重新解码应恢复所有字段
func TestEncodeBGPUpdateRoundTrip(t *testing.T) {
	testCases := []struct {
		name    string
		prefix  string
		nextHop string
	}{
		{"标准/24前缀", "10.0.0.0/24", "198.51.100.1"},
		{"/16前缀", "172.16.0.0/16", "203.0.113.2"},
		{"主机前缀/32", "192.0.2.7/32", "203.0.113.1"},
		{"末字节含脏位的/25前缀", "10.0.0.129/25", "198.51.100.2"},
		{"缺省掩码按/0处理", "0.0.0.0", "198.51.100.3"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			buf := make([]byte, MinBufferSize)
			n, err := EncodeBGPUpdate(buf, tc.prefix, tc.nextHop)
			require.NoError(t, err)

			update, err := ParseBGPUpdate(buf[:n])
			require.NoError(t, err)

			assert.Equal(t, uint16(n), update.Length, "长度字段应等于实际字节数")
			assert.Empty(t, update.WithdrawnRoutes, "不应有撤销路由")
			assert.Len(t, update.Attributes, 4, "应有4条路径属性")
			assert.Equal(t, uint8(OriginIGP), update.Origin)
			assert.Equal(t, []uint16{65001, 65002}, update.ASPath, "AS路径不匹配")
			assert.Equal(t, tc.nextHop, update.NextHop, "下一跳不匹配")
			assert.True(t, update.HasMED)
			assert.Equal(t, uint32(25), update.MED)
			require.Len(t, update.NLRI, 1)
		})
	}
}

// TestEncodeBGPUpdateNLRIBoundary 前缀长度0和32的NLRI边界
func TestEncodeBGPUpdateNLRIBoundary(t *testing.T) {
	buf := make([]byte, MinBufferSize)

	// /0: NLRI只有1个长度字节,不带地址字节
	n, err := EncodeBGPUpdate(buf, "0.0.0.0/0", "198.51.100.1")
	require.NoError(t, err)
	assert.Equal(t, 51, n)
	assert.Equal(t, byte(0), buf[n-1], "/0的NLRI应只剩长度字节")

	// /32: 完整4个地址字节
	n, err = EncodeBGPUpdate(buf, "192.0.2.55/32", "198.51.100.1")
	require.NoError(t, err)
	assert.Equal(t, 55, n)
	assert.Equal(t, []byte{32, 192, 0, 2, 55}, buf[n-5:n])
}

// TestEncodeBGPUpdateDirtyTrailingBits 末字节的多余位原样保留,不做清零
func TestEncodeBGPUpdateDirtyTrailingBits(t *testing.T) {
	buf := make([]byte, MinBufferSize)
	n, err := EncodeBGPUpdate(buf, "10.0.0.129/25", "198.51.100.1")
	require.NoError(t, err)

	assert.Equal(t, []byte{25, 10, 0, 0, 129}, buf[n-5:n], "NLRI末字节应保留0x81")
}

// TestEncodeBGPUpdateDeterministic 相同输入应产生字节级一致的输出
func TestEncodeBGPUpdateDeterministic(t *testing.T) {
	first := make([]byte, MinBufferSize)
	second := make([]byte, MinBufferSize)

	n1, err := EncodeBGPUpdate(first, "10.1.0.0/24", "203.0.113.1")
	require.NoError(t, err)
	n2, err := EncodeBGPUpdate(second, "10.1.0.0/24", "203.0.113.1")
	require.NoError(t, err)

	assert.Equal(t, first[:n1], second[:n2])
}

// TestEncodeBGPUpdateInvalidInput 非法输入应在写入前快速失败
func TestEncodeBGPUpdateInvalidInput(t *testing.T) {
	testCases := []struct {
		name    string
		prefix  string
		nextHop string
		buf     []byte
		wantErr error
	}{
		{"非法前缀地址", "999.0.0.0/24", "198.51.100.1", make([]byte, MinBufferSize), ErrInvalidAddress},
		{"前缀长度越界", "10.0.0.0/33", "198.51.100.1", make([]byte, MinBufferSize), ErrInvalidPrefixLength},
		{"前缀长度为负", "10.0.0.0/-1", "198.51.100.1", make([]byte, MinBufferSize), ErrInvalidPrefixLength},
		{"前缀长度非数字", "10.0.0.0/abc", "198.51.100.1", make([]byte, MinBufferSize), ErrInvalidPrefixLength},
		{"非法下一跳", "10.0.0.0/24", "not-an-ip", make([]byte, MinBufferSize), ErrInvalidAddress},
		{"IPv6下一跳", "10.0.0.0/24", "2001:db8::1", make([]byte, MinBufferSize), ErrInvalidAddress},
		{"缓冲区过小", "10.0.0.0/24", "198.51.100.1", make([]byte, 64), ErrShortBuffer},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			n, err := EncodeBGPUpdate(tc.buf, tc.prefix, tc.nextHop)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Zero(t, n, "失败时不应报告写入字节")
		})
	}
}

// TestParseBGPUpdateRejectsGarbage 解码器应拒绝损坏的报文
func TestParseBGPUpdateRejectsGarbage(t *testing.T) {
	buf := make([]byte, MinBufferSize)
	n, err := EncodeBGPUpdate(buf, "10.0.0.0/24", "198.51.100.1")
	require.NoError(t, err)

	// 截断
	_, err = ParseBGPUpdate(buf[:10])
	assert.ErrorIs(t, err, ErrTruncated)

	// 破坏标记
	bad := append([]byte(nil), buf[:n]...)
	bad[0] = 0x00
	_, err = ParseBGPUpdate(bad)
	assert.ErrorIs(t, err, ErrBadMessage)

	// 长度字段与实际不符
	bad = append([]byte(nil), buf[:n]...)
	bad[17]++
	_, err = ParseBGPUpdate(bad)
	assert.ErrorIs(t, err, ErrBadMessage)

	// 非UPDATE类型
	bad = append([]byte(nil), buf[:n]...)
	bad[18] = 1
	_, err = ParseBGPUpdate(bad)
	assert.ErrorIs(t, err, ErrBadMessage)
}
