// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lalflv
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package bitrw

import (
	"fmt"

	"github.com/q191201771/naza/pkg/nazabits"
)

type BitWriter struct {
	core     nazabits.BitWriter
	capacity uint // 单位bit
	pos      uint
}

// NewBitWriter
//
// @param b: 写入的目标内存块，调用方需保证初始值全部为0
//
//	函数调用结束后，内部继续持有该内存块
func NewBitWriter(b []byte) BitWriter {
	return BitWriter{
		core:     nazabits.NewBitWriter(b),
		capacity: uint(len(b)) * 8,
	}
}

// WriteBits 将v的低n位写入，高位在前，跨字节时自动切分
//
// 写越界会panic
func (bw *BitWriter) WriteBits(n uint, v uint32) {
	if n == 0 {
		return
	}
	if n > 32 || bw.pos+n > bw.capacity {
		panic(fmt.Sprintf("lalflv.bitrw: write out of capacity. pos=%d, n=%d, capacity=%d", bw.pos, n, bw.capacity))
	}
	for left := n; left > 0; {
		chunk := left
		if chunk > 8 {
			chunk = 8
		}
		left -= chunk
		bw.core.WriteBits8(chunk, uint8((v>>left)&(1<<chunk-1)))
	}
	bw.pos += n
}

func (bw *BitWriter) WriteBit(b uint8) {
	bw.WriteBits(1, uint32(b&1))
}

func (bw *BitWriter) WriteFlag(b bool) {
	if b {
		bw.WriteBits(1, 1)
	} else {
		bw.WriteBits(1, 0)
	}
}

// Pos 当前已写入的bit数
func (bw *BitWriter) Pos() uint {
	return bw.pos
}

// BytesWritten 已写入的字节数，不足一个字节的部分算作一个字节
func (bw *BitWriter) BytesWritten() int {
	return int((bw.pos + 7) / 8)
}
