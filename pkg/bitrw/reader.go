// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lalflv
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// Package bitrw 提供按bit粒度读写字节切片的游标，以及H.264中使用的Exp-Golomb编解码
//
// 底层的bit操作委托给 nazabits ，本package在其之上维护容量与当前位置，
// 使得：
//   - 读越界返回错误，并且游标不移动
//   - SkipBits越界时什么也不做
//   - 写越界直接panic，因为写入的buffer大小总是由调用方使用与分配时相同的公式计算得出
package bitrw

import (
	"github.com/q191201771/lalflv/pkg/base"
	"github.com/q191201771/naza/pkg/nazabits"
)

const maxReadBits = 32

type BitReader struct {
	core     nazabits.BitReader
	capacity uint // 单位bit
	pos      uint
}

// NewBitReader
//
// @param b: 函数调用结束后，内部继续持有该内存块，调用方在读取结束前不应修改它
func NewBitReader(b []byte) BitReader {
	return BitReader{
		core:     nazabits.NewBitReader(b),
		capacity: uint(len(b)) * 8,
	}
}

// ReadBits 读取n个bit，高位在前
//
// @param n: 取值范围[1, 32]
func (br *BitReader) ReadBits(n uint) (uint32, error) {
	if n == 0 || n > maxReadBits {
		return 0, base.ErrShortBuffer
	}
	if br.pos+n > br.capacity {
		return 0, base.NewErrShortBuffer(int(br.pos+n), int(br.capacity), "bitrw read bits")
	}
	v, err := br.core.ReadBits32(n)
	if err != nil {
		return 0, err
	}
	br.pos += n
	return v, nil
}

func (br *BitReader) ReadBit() (uint8, error) {
	v, err := br.ReadBits(1)
	return uint8(v), err
}

// ReadFlag 读取1个bit，并转换为bool类型
func (br *BitReader) ReadFlag() (bool, error) {
	v, err := br.ReadBits(1)
	return v == 1, err
}

// SkipBits 跳过n个bit
//
// 注意，如果跳过后超出了容量，则什么也不做，不返回错误。
// 后续的读操作会自然地返回越界错误。
func (br *BitReader) SkipBits(n uint) {
	if n == 0 || br.pos+n > br.capacity {
		return
	}
	if err := br.core.SkipBits(n); err != nil {
		return
	}
	br.pos += n
}

// Pos 当前已读取的bit数
func (br *BitReader) Pos() uint {
	return br.pos
}

// AvailBits 剩余可读的bit数
func (br *BitReader) AvailBits() uint {
	return br.capacity - br.pos
}
