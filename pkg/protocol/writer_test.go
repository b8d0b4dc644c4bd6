package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestWriterBigEndian 测试大端序写入和游标推进
func TestWriterBigEndian(t *testing.T) {
	buf := make([]byte, 16)
	w := NewWriter(buf)

	w.Uint8(0xab)
	w.Uint16(0x0102)
	w.Uint32(0x03040506)
	w.PutBytes([]byte{9, 8})

	assert.Equal(t, 9, w.Len(), "游标位置不匹配")
	assert.Equal(t, []byte{0xab, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 9, 8}, buf[:w.Len()])
}

// TestReservationPatch 测试长度字段的预留和回填
func TestReservationPatch(t *testing.T) {
	buf := make([]byte, 16)
	w := NewWriter(buf)

	w.Uint8(1)
	r := w.Reserve16()
	assert.Equal(t, 1, r.Offset())
	assert.Equal(t, 3, w.Len(), "预留应推进游标2字节")

	// 写入被测量的内容后回填
	w.PutBytes([]byte{7, 7, 7})
	assert.NoError(t, r.Patch(uint16(w.Len()-3)))
	assert.Equal(t, []byte{0x00, 0x03}, buf[1:3], "回填值不匹配")
	assert.Equal(t, 6, w.Len(), "回填不应移动主游标")
}

// TestReservationDoublePatch 每个预留只允许回填一次
func TestReservationDoublePatch(t *testing.T) {
	w := NewWriter(make([]byte, 8))
	r := w.Reserve16()

	assert.NoError(t, r.Patch(1))
	assert.Error(t, r.Patch(2), "重复回填应返回错误")
}
