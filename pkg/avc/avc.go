// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lalflv
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package avc

import (
	"github.com/q191201771/lalflv/pkg/base"
	"github.com/q191201771/naza/pkg/bele"
)

var (
	NaluStartCode3 = []byte{0x0, 0x0, 0x1}
	NaluStartCode4 = []byte{0x0, 0x0, 0x0, 0x1}
)

// ISO-14496-10.pdf
// Table 7-1 – NAL unit type codes, syntax element categories, and NAL unit type classes
const (
	NaluTypeSlice    uint8 = 1
	NaluTypeIdrSlice uint8 = 5
	NaluTypeSei      uint8 = 6
	NaluTypeSps      uint8 = 7
	NaluTypePps      uint8 = 8
	NaluTypeAud      uint8 = 9  // Access Unit Delimiter
	NaluTypeEos      uint8 = 10 // End of sequence
	NaluTypeFd       uint8 = 12 // Filler Data
)

var NaluTypeMapping = map[uint8]string{
	NaluTypeSlice:    "SLICE",
	NaluTypeIdrSlice: "IDR",
	NaluTypeSei:      "SEI",
	NaluTypeSps:      "SPS",
	NaluTypePps:      "PPS",
	NaluTypeAud:      "AUD",
	NaluTypeEos:      "EOS",
	NaluTypeFd:       "FD",
}

// ParseNaluType
//
// @param v: nalu的第一个字节
func ParseNaluType(v uint8) uint8 {
	return v & 0x1f
}

func ParseNaluTypeReadable(v uint8) string {
	ret, ok := NaluTypeMapping[ParseNaluType(v)]
	if !ok {
		return "unknown"
	}
	return ret
}

// FindStartCode 从 `start` 位置开始查找 00 00 01
//
// @return 找到则返回起始码第一个字节的位置，否则返回-1
//
//	注意，对于4字节起始码 00 00 00 01，返回的是后3个字节的位置，多出来的0由调用方按尾部0处理
func FindStartCode(b []byte, start int) int {
	for i := start; i+2 < len(b); i++ {
		if b[i+2] > 1 {
			// 第三个字节既不是0也不是1，可以直接跳过3个字节
			i += 2
			continue
		}
		if b[i] == 0 && b[i+1] == 0 && b[i+2] == 1 {
			return i
		}
	}
	return -1
}

// SplitNaluAnnexb 将Annexb格式的数据切分成多个nalu
//
// 每个nalu的范围是从当前起始码之后，到下一个起始码之前（或数据结尾），并去除尾部的0
// 空数据或者没有起始码时返回空切片，不是错误
//
// @return 返回的nalu是 `b` 的子切片，没有发生拷贝
func SplitNaluAnnexb(b []byte) [][]byte {
	var ret [][]byte
	pos := FindStartCode(b, 0)
	for pos != -1 {
		begin := pos + 3
		next := FindStartCode(b, begin)
		end := len(b)
		if next != -1 {
			end = next
		}
		for end > begin && b[end-1] == 0 {
			end--
		}
		if end > begin {
			ret = append(ret, b[begin:end])
		}
		pos = next
	}
	return ret
}

// ExtractRbsp 跳过1字节的nalu header，并去除 00 00 03 中的 03 （emulation_prevention_three_byte）
//
// @return 新申请的内存块
func ExtractRbsp(nalu []byte) []byte {
	if len(nalu) < 2 {
		return nil
	}
	ret := make([]byte, 0, len(nalu)-1)
	zeroCount := 0
	for _, v := range nalu[1:] {
		if zeroCount >= 2 && v == 3 {
			zeroCount = 0
			continue
		}
		ret = append(ret, v)
		if v == 0 {
			zeroCount++
		} else {
			zeroCount = 0
		}
	}
	return ret
}

// JoinNaluAvcc 将多个nalu组合成Avcc格式的数据，每个nalu前加上4字节大端的长度
func JoinNaluAvcc(nals [][]byte) []byte {
	var n int
	for _, nal := range nals {
		n += 4 + len(nal)
	}
	ret := make([]byte, n)
	pos := 0
	for _, nal := range nals {
		bele.BePutUint32(ret[pos:], uint32(len(nal)))
		pos += 4
		pos += copy(ret[pos:], nal)
	}
	return ret
}

// JoinNaluAnnexb 将多个nalu组合成Annexb格式的数据，每个nalu前加上4字节的start code
func JoinNaluAnnexb(nals [][]byte) []byte {
	var n int
	for _, nal := range nals {
		n += len(NaluStartCode4) + len(nal)
	}
	ret := make([]byte, 0, n)
	for _, nal := range nals {
		ret = append(ret, NaluStartCode4...)
		ret = append(ret, nal...)
	}
	return ret
}

// IterateNaluAvcc 遍历Avcc格式的nalu流
func IterateNaluAvcc(nals []byte, handler func(nal []byte)) error {
	pos := 0
	for pos < len(nals) {
		if len(nals)-pos < 4 {
			return base.NewErrShortBuffer(pos+4, len(nals), "avcc nalu length")
		}
		length := int(bele.BeUint32(nals[pos:]))
		pos += 4
		if length > len(nals)-pos {
			return base.ErrAvcNaluSize
		}
		handler(nals[pos : pos+length])
		pos += length
	}
	return nil
}

// HasIdr nalu中是否包含IDR帧
func HasIdr(nals [][]byte) bool {
	for _, nal := range nals {
		if len(nal) != 0 && ParseNaluType(nal[0]) == NaluTypeIdrSlice {
			return true
		}
	}
	return false
}

// SplitAccessUnits 将连续的nalu序列按access unit（也即一帧）分组
//
// <ISO-14496-10.pdf>, <7.4.1.2.3 Order of NAL units and coded pictures and association to access units>
//
// 以下情况开始一个新的access unit：
//   - AUD
//   - 在slice之后出现的SPS、PPS、SEI
//   - 在slice之后出现的first_mb_in_slice为0的slice
func SplitAccessUnits(nals [][]byte) [][][]byte {
	var (
		ret      [][][]byte
		cur      [][]byte
		hasSlice bool
	)
	flush := func() {
		if len(cur) != 0 {
			ret = append(ret, cur)
		}
		cur = nil
		hasSlice = false
	}
	for _, nal := range nals {
		t := ParseNaluType(nal[0])
		switch t {
		case NaluTypeAud:
			flush()
		case NaluTypeSps, NaluTypePps, NaluTypeSei:
			if hasSlice {
				flush()
			}
		case NaluTypeSlice, NaluTypeIdrSlice:
			// first_mb_in_slice为ue(v)，值为0时编码为单个bit 1
			if hasSlice && len(nal) > 1 && nal[1]&0x80 != 0 {
				flush()
			}
			hasSlice = true
		}
		cur = append(cur, nal)
	}
	flush()
	return ret
}
