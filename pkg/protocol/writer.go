package protocol

import (
	"encoding/binary"
	"fmt"
)

// MinBufferSize 是编码器要求的最小缓冲区容量,
// 足以容纳两种报文在固定属性/链路集合下的最大长度
const MinBufferSize = 512

// Writer 在调用方提供的缓冲区上顺序写入大端序字段
type Writer struct {
	buf []byte
	off int
}

func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf}
}

func (w *Writer) Uint8(v uint8) {
	w.buf[w.off] = v
	w.off++
}

func (w *Writer) Uint16(v uint16) {
	binary.BigEndian.PutUint16(w.buf[w.off:], v)
	w.off += 2
}

func (w *Writer) Uint32(v uint32) {
	binary.BigEndian.PutUint32(w.buf[w.off:], v)
	w.off += 4
}

func (w *Writer) PutBytes(b []byte) {
	copy(w.buf[w.off:], b)
	w.off += len(b)
}

// Len 返回已写入的字节数,即当前游标位置
func (w *Writer) Len() int {
	return w.off
}

// Reservation 表示一个预留的2字节长度字段
// 外层长度依赖尚未写入的内层内容,先占位后回填
type Reservation struct {
	w       *Writer
	offset  int
	patched bool
}

// Reserve16 在当前游标处预留一个2字节长度字段并前移游标
func (w *Writer) Reserve16() *Reservation {
	r := &Reservation{w: w, offset: w.off}
	w.off += 2
	return r
}

// Patch 将测得的长度回填到预留位置,不移动主游标
// 每个预留必须且只能回填一次
func (r *Reservation) Patch(v uint16) error {
	if r.patched {
		return fmt.Errorf("length reservation at offset %d already patched", r.offset)
	}
	binary.BigEndian.PutUint16(r.w.buf[r.offset:], v)
	r.patched = true
	return nil
}

// Offset 返回预留字段在缓冲区中的偏移
func (r *Reservation) Offset() int {
	return r.offset
}
