package protocol

import "errors"

var (
	// ErrInvalidAddress 点分十进制地址解析失败
	ErrInvalidAddress = errors.New("invalid IPv4 address")
	// ErrInvalidPrefixLength CIDR前缀长度超出[0,32]
	ErrInvalidPrefixLength = errors.New("prefix length out of range [0,32]")
	// ErrShortBuffer 目标缓冲区小于MinBufferSize
	ErrShortBuffer = errors.New("destination buffer smaller than 512 bytes")
	// ErrTruncated 解码时载荷长度不足
	ErrTruncated = errors.New("truncated payload")
	// ErrBadMessage 解码时报文格式不符合预期
	ErrBadMessage = errors.New("malformed message")
)
