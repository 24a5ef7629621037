// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lalflv
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package flv

import (
	"io"

	"github.com/q191201771/lalflv/pkg/base"
)

// IFlvSink 接收muxer输出的flv数据
//
// 调用顺序为：
//  1. WriteFlvHeader 一次
//  2. WriteTag 多次
//  3. UpdateAt 最多一次，用于回写metadata
//  4. OnMuxingEnd 一次
type IFlvSink interface {
	// WriteFlvHeader
	//
	// @param b: 包含9字节flv header以及4字节的PreviousTagSize0
	//
	WriteFlvHeader(b []byte) error

	// WriteTag
	//
	// @param b: 完整的tag，包含tag header，body，prev tag size
	//
	WriteTag(b []byte, tagType uint8, timestamp uint32) error

	// UpdateAt 覆盖已经写入的数据
	//
	// @param offset: 相对于流起始位置（也即flv header第一个字节）的偏移
	//
	// @return 不支持时返回 base.ErrFlvSinkNotSeek
	//
	UpdateAt(offset int64, b []byte) error

	OnMuxingEnd() error
}

// ---------------------------------------------------------------------------------------------------------------------

// BufferSink 将数据写入内存
type BufferSink struct {
	buf   []byte
	ended bool
}

func NewBufferSink() *BufferSink {
	return &BufferSink{}
}

func (s *BufferSink) WriteFlvHeader(b []byte) error {
	s.buf = append(s.buf, b...)
	return nil
}

func (s *BufferSink) WriteTag(b []byte, tagType uint8, timestamp uint32) error {
	s.buf = append(s.buf, b...)
	return nil
}

func (s *BufferSink) UpdateAt(offset int64, b []byte) error {
	if offset < 0 || offset+int64(len(b)) > int64(len(s.buf)) {
		return base.NewErrShortBuffer(int(offset)+len(b), len(s.buf), "buffer sink update")
	}
	copy(s.buf[offset:], b)
	return nil
}

func (s *BufferSink) OnMuxingEnd() error {
	s.ended = true
	return nil
}

func (s *BufferSink) Bytes() []byte {
	return s.buf
}

func (s *BufferSink) Ended() bool {
	return s.ended
}

// ---------------------------------------------------------------------------------------------------------------------

// WriterSink 流式输出，比如写入网络连接或者标准输出
//
// 已经发送的数据无法修改，回写metadata时交给 onUpdate 处理。
// onUpdate 为nil时，最终的metadata被丢弃
type WriterSink struct {
	w        io.Writer
	onUpdate func(offset int64, b []byte) error
}

func NewWriterSink(w io.Writer, onUpdate func(offset int64, b []byte) error) *WriterSink {
	return &WriterSink{
		w:        w,
		onUpdate: onUpdate,
	}
}

func (s *WriterSink) WriteFlvHeader(b []byte) error {
	_, err := s.w.Write(b)
	return err
}

func (s *WriterSink) WriteTag(b []byte, tagType uint8, timestamp uint32) error {
	_, err := s.w.Write(b)
	return err
}

func (s *WriterSink) UpdateAt(offset int64, b []byte) error {
	if s.onUpdate == nil {
		return base.ErrFlvSinkNotSeek
	}
	return s.onUpdate(offset, b)
}

// OnMuxingEnd 如果底层支持Flush，则调用Flush
func (s *WriterSink) OnMuxingEnd() error {
	if f, ok := s.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}
