// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lalflv
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package bitrw_test

import (
	"bytes"
	"testing"

	"github.com/icza/bitio"
	"github.com/q191201771/lalflv/pkg/bitrw"
	"github.com/q191201771/naza/pkg/assert"
)

func TestBitReader(t *testing.T) {
	br := bitrw.NewBitReader([]byte{0xb5, 0x0f})
	v, err := br.ReadBits(3)
	assert.Equal(t, nil, err)
	assert.Equal(t, uint32(5), v)
	v, err = br.ReadBits(9)
	assert.Equal(t, nil, err)
	assert.Equal(t, uint32(0x150), v)
	assert.Equal(t, uint(12), br.Pos())

	// 越界，游标不动
	_, err = br.ReadBits(5)
	assert.IsNotNil(t, err)
	assert.Equal(t, uint(12), br.Pos())

	// SkipBits越界什么也不做
	br.SkipBits(8)
	assert.Equal(t, uint(12), br.Pos())
	br.SkipBits(2)
	assert.Equal(t, uint(14), br.Pos())
	f, err := br.ReadFlag()
	assert.Equal(t, nil, err)
	assert.Equal(t, true, f)
	assert.Equal(t, uint(1), br.AvailBits())

	_, err = br.ReadBits(0)
	assert.IsNotNil(t, err)
	_, err = br.ReadBits(33)
	assert.IsNotNil(t, err)
}

func TestBitWriter(t *testing.T) {
	b := make([]byte, 2)
	bw := bitrw.NewBitWriter(b)
	bw.WriteBits(3, 5)
	bw.WriteBits(9, 0x150)
	bw.WriteFlag(false)
	bw.WriteBit(1)
	assert.Equal(t, []byte{0xb5, 0x04}, b)
	assert.Equal(t, 2, bw.BytesWritten())

	// 只写入低n位
	b = make([]byte, 1)
	bw = bitrw.NewBitWriter(b)
	bw.WriteBits(4, 0xff)
	assert.Equal(t, []byte{0xf0}, b)
}

func TestBitWriterOverflow(t *testing.T) {
	defer func() {
		assert.IsNotNil(t, recover())
	}()
	bw := bitrw.NewBitWriter(make([]byte, 1))
	bw.WriteBits(7, 0)
	bw.WriteBits(2, 0)
}

func TestRoundTrip(t *testing.T) {
	for n := uint(1); n <= 32; n++ {
		v := uint32(0x9abcdef1) & uint32(uint64(1)<<n-1)
		b := make([]byte, 5)
		bw := bitrw.NewBitWriter(b)
		bw.WriteBits(3, 0x2) // 制造非字节对齐
		bw.WriteBits(n, v)

		br := bitrw.NewBitReader(b)
		prefix, err := br.ReadBits(3)
		assert.Equal(t, nil, err)
		assert.Equal(t, uint32(0x2), prefix)
		r, err := br.ReadBits(n)
		assert.Equal(t, nil, err)
		assert.Equal(t, v, r)

		// 与 icza/bitio 交叉验证
		ir := bitio.NewReader(bytes.NewReader(b))
		_, err = ir.ReadBits(3)
		assert.Equal(t, nil, err)
		iv, err := ir.ReadBits(uint8(n))
		assert.Equal(t, nil, err)
		assert.Equal(t, uint64(v), iv)
	}
}

func TestWriterAgainstBitio(t *testing.T) {
	var buf bytes.Buffer
	iw := bitio.NewWriter(&buf)
	_ = iw.WriteBits(0x1, 1)
	_ = iw.WriteBits(0x2a, 6)
	_ = iw.WriteBits(0x3ffff, 18)
	_ = iw.Close()

	b := make([]byte, 4)
	bw := bitrw.NewBitWriter(b)
	bw.WriteBits(1, 0x1)
	bw.WriteBits(6, 0x2a)
	bw.WriteBits(18, 0x3ffff)
	assert.Equal(t, buf.Bytes(), b)
}

func TestGolomb(t *testing.T) {
	// 1 -> 0, 010 -> 1, 011 -> 2, 00100 -> 3
	br := bitrw.NewBitReader([]byte{0xa6, 0x40})
	for i := uint32(0); i < 4; i++ {
		v, err := br.ReadUe()
		assert.Equal(t, nil, err)
		assert.Equal(t, i, v)
	}

	ues := []uint32{0, 1, 2, 3, 7, 8, 255, 65535, 1 << 20, 0xfffffffe}
	for _, v := range ues {
		b := make([]byte, 16)
		bw := bitrw.NewBitWriter(b)
		bw.WriteUe(v)
		assert.Equal(t, bitrw.UeBitLength(v), bw.Pos())
		br := bitrw.NewBitReader(b)
		r, err := br.ReadUe()
		assert.Equal(t, nil, err)
		assert.Equal(t, v, r)
	}

	ses := []int32{0, 1, -1, 2, -2, 100, -100, 1 << 30, -(1 << 30)}
	for _, v := range ses {
		b := make([]byte, 16)
		bw := bitrw.NewBitWriter(b)
		bw.WriteSe(v)
		assert.Equal(t, bitrw.SeBitLength(v), bw.Pos())
		br := bitrw.NewBitReader(b)
		r, err := br.ReadSe()
		assert.Equal(t, nil, err)
		assert.Equal(t, v, r)
	}
}

func TestGolombMalformed(t *testing.T) {
	// 全0，前缀超过上限
	br := bitrw.NewBitReader(make([]byte, 8))
	_, err := br.ReadUe()
	assert.IsNotNil(t, err)

	// 后缀不足
	br = bitrw.NewBitReader([]byte{0x01})
	_, err = br.ReadUe()
	assert.IsNotNil(t, err)
}
