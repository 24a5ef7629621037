// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lalflv
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package aac

import (
	"github.com/q191201771/lalflv/pkg/base"
	"github.com/q191201771/lalflv/pkg/bitrw"
)

// AudioSpecificConfig(asc)
// keywords: Seq Header,
// e.g.  rtmp, flv
//
// ADTS(Audio Data Transport Stream)
// e.g. es, ts
//

const (
	AdtsHeaderLength        = 7
	AdtsHeaderLengthWithCrc = 9

	AscLength = 2

	AscSamplingFrequencyIndex48000 = 3
	AscSamplingFrequencyIndex44100 = 4

	// 每个AAC-LC frame固定包含1024个sample
	SamplesPerFrame = 1024

	// MaxAdtsFrameLength aac_frame_length字段只有13位，包含ADTS头
	MaxAdtsFrameLength = 0x1fff

	adtsSyncword = 0xfff
)

// <1.6.3.3 samplingFrequencyIndex>
var samplingFrequencyTable = []int{
	96000, 88200, 64000, 48000, 44100, 32000, 24000, 22050, 16000, 12000, 11025, 8000, 7350,
}

// SamplingFrequency
//
// @return 13~15为保留值，返回错误
func SamplingFrequency(index uint8) (int, error) {
	if int(index) >= len(samplingFrequencyTable) {
		return -1, base.ErrSamplingFrequencyIndex
	}
	return samplingFrequencyTable[index], nil
}

// SamplingFrequencyIndex 根据采样率反查index，找不到时返回错误
func SamplingFrequencyIndex(frequency int) (uint8, error) {
	for i, v := range samplingFrequencyTable {
		if v == frequency {
			return uint8(i), nil
		}
	}
	return 0xf, base.ErrSamplingFrequencyIndex
}

// <ISO_IEC_14496-3.pdf>
// <1.6.2.1 AudioSpecificConfig>, <page 33/110>
// <1.5.1.1 Audio Object type definition>, <page 23/110>
// <1.6.3.3 samplingFrequencyIndex>, <page 35/110>
// <1.6.3.4 channelConfiguration>
// <4.4.1 Decoder configuration (GASpecificConfig)>
// --------------------------------------------------------
// audio object type      [5b] 1=AAC MAIN  2=AAC LC
// samplingFrequencyIndex [4b] 3=48000  4=44100  6=24000  5=32000  11=11025
// channelConfiguration   [4b] 1=center front speaker  2=left, right front speakers
// frameLengthFlag        [1b] 0=1024
// dependsOnCoreCoder     [1b]
// extensionFlag          [1b]
type AscContext struct {
	AudioObjectType        uint8 // [5b]
	SamplingFrequencyIndex uint8 // [4b]
	ChannelConfiguration   uint8 // [4b]
	FrameLengthFlag        uint8 // [1b]
	DependsOnCoreCoder     uint8 // [1b]
	ExtensionFlag          uint8 // [1b]
}

func NewAscContext(asc []byte) (*AscContext, error) {
	var ascCtx AscContext
	if err := ascCtx.Unpack(asc); err != nil {
		return nil, err
	}
	return &ascCtx, nil
}

// NewAscContextWithAdtsHeader 从ADTS头生成AudioSpecificConfig
//
// ADTS中的profile是MPEG-4的audio object type减1
func NewAscContextWithAdtsHeader(h *AdtsHeader) *AscContext {
	return &AscContext{
		AudioObjectType:        h.Profile + 1,
		SamplingFrequencyIndex: h.SamplingFrequencyIndex,
		ChannelConfiguration:   h.ChannelConfiguration,
	}
}

// Unpack
//
// @param asc: 2字节的AAC Audio Specifc Config
//
//	注意，如果是rtmp/flv的message/tag，应去除Seq Header头部的2个字节
//	函数调用结束后，内部不持有该内存块
func (ascCtx *AscContext) Unpack(asc []byte) error {
	if len(asc) < AscLength {
		Log.Warnf("aac seq header length invalid. len=%d", len(asc))
		return base.NewErrShortBuffer(AscLength, len(asc), "asc")
	}

	br := bitrw.NewBitReader(asc)
	fields := []*uint8{
		&ascCtx.AudioObjectType, &ascCtx.SamplingFrequencyIndex, &ascCtx.ChannelConfiguration,
		&ascCtx.FrameLengthFlag, &ascCtx.DependsOnCoreCoder, &ascCtx.ExtensionFlag,
	}
	for i, n := range []uint{5, 4, 4, 1, 1, 1} {
		v, err := br.ReadBits(n)
		if err != nil {
			return err
		}
		*fields[i] = uint8(v)
	}
	return nil
}

// Pack
//
// @return asc: 内存块为独立新申请；函数调用结束后，内部不持有该内存块
func (ascCtx *AscContext) Pack() (asc []byte) {
	asc = make([]byte, AscLength)
	bw := bitrw.NewBitWriter(asc)
	bw.WriteBits(5, uint32(ascCtx.AudioObjectType))
	bw.WriteBits(4, uint32(ascCtx.SamplingFrequencyIndex))
	bw.WriteBits(4, uint32(ascCtx.ChannelConfiguration))
	bw.WriteBits(1, uint32(ascCtx.FrameLengthFlag))
	bw.WriteBits(1, uint32(ascCtx.DependsOnCoreCoder))
	bw.WriteBits(1, uint32(ascCtx.ExtensionFlag))
	return
}

// PackAdtsHeader 获取ADTS头，由于ADTS头中的字段依赖包的长度，而每个包的长度可能不同，所以每个包的ADTS头都需要独立生成
//
// @param frameLength: raw aac frame的大小
//
//	注意，如果是rtmp/flv的message/tag，应去除Seq Header头部的2个字节
//
// @return out: 内存块为独立新申请；函数调用结束后，内部不持有该内存块
//
// @return err: 加上ADTS头后超过 MaxAdtsFrameLength 时返回错误
func (ascCtx *AscContext) PackAdtsHeader(frameLength int) (out []byte, err error) {
	out = make([]byte, AdtsHeaderLength)
	if err = ascCtx.PackToAdtsHeader(out, frameLength); err != nil {
		return nil, err
	}
	return out, nil
}

// PackToAdtsHeader
//
// @param out: 函数调用结束后，内部不持有该内存块
func (ascCtx *AscContext) PackToAdtsHeader(out []byte, frameLength int) error {
	if len(out) < AdtsHeaderLength {
		return base.NewErrShortBuffer(AdtsHeaderLength, len(out), "adts header")
	}
	if frameLength < 0 || frameLength+AdtsHeaderLength > MaxAdtsFrameLength {
		return base.NewErrAdtsFrameLength(frameLength + AdtsHeaderLength)
	}

	h := AdtsHeader{
		Syncword:               adtsSyncword,
		ProtectionAbsent:       1,
		Profile:                ascCtx.AudioObjectType - 1,
		SamplingFrequencyIndex: ascCtx.SamplingFrequencyIndex,
		ChannelConfiguration:   ascCtx.ChannelConfiguration,
		FrameLength:            uint16(frameLength + AdtsHeaderLength),
		BufferFullness:         0x7ff,
	}
	h.PackTo(out)
	return nil
}

func (ascCtx *AscContext) GetSamplingFrequency() (int, error) {
	return SamplingFrequency(ascCtx.SamplingFrequencyIndex)
}

// IsStereo flv的soundType只区分单声道和立体声
func (ascCtx *AscContext) IsStereo() bool {
	return ascCtx.ChannelConfiguration >= 2
}

// AdtsHeader
//
// <ISO_IEC_14496-3.pdf>
// <1.A.2.2.1 Fixed Header of ADTS>, <page 75/110>
// <1.A.2.2.2 Variable Header of ADTS>, <page 76/110>
// <1.A.3.2.1 Definitions: Bitstream elements for ADTS>
// ----------------------------------------------------
// Syncword                 [12b] '1111 1111 1111'
// ID                       [1b]  1=MPEG-2 AAC 0=MPEG-4
// Layer                    [2b]
// protection_absent        [1b]  1=no crc check
// Profile_ObjectType       [2b]
// sampling_frequency_index [4b]
// private_bit              [1b]
// channel_configuration    [3b]
// origin/copy              [1b]
// home                     [1b]
// ------------------------------------
// copyright_identification_bit   [1b]
// copyright_identification_start [1b]
// aac_frame_length               [13b]
// adts_buffer_fullness           [11b]
// no_raw_data_blocks_in_frame    [2b]
type AdtsHeader struct {
	Syncword               uint16
	Id                     uint8
	Layer                  uint8
	ProtectionAbsent       uint8
	Profile                uint8
	SamplingFrequencyIndex uint8
	PrivateBit             uint8
	ChannelConfiguration   uint8
	OriginalCopy           uint8
	Home                   uint8

	CopyrightIdentificationBit   uint8
	CopyrightIdentificationStart uint8
	FrameLength                  uint16 // 字段中的值，包含了adts header + adts frame
	BufferFullness               uint16
	NumberOfRawDataBlocks        uint8
}

// ParseAdtsHeader
//
// @param b: 函数调用结束后，内部不持有该内存块
func ParseAdtsHeader(b []byte) (AdtsHeader, error) {
	var h AdtsHeader
	if len(b) < AdtsHeaderLength {
		return h, base.NewErrShortBuffer(AdtsHeaderLength, len(b), "adts header")
	}

	br := bitrw.NewBitReader(b[:AdtsHeaderLength])
	// 长度已经检查过，不会出错
	read := func(n uint) uint32 {
		v, _ := br.ReadBits(n)
		return v
	}
	h.Syncword = uint16(read(12))
	if h.Syncword != adtsSyncword {
		return h, base.NewErrAdtsSyncword(h.Syncword)
	}
	h.Id = uint8(read(1))
	h.Layer = uint8(read(2))
	h.ProtectionAbsent = uint8(read(1))
	h.Profile = uint8(read(2))
	h.SamplingFrequencyIndex = uint8(read(4))
	h.PrivateBit = uint8(read(1))
	h.ChannelConfiguration = uint8(read(3))
	h.OriginalCopy = uint8(read(1))
	h.Home = uint8(read(1))
	h.CopyrightIdentificationBit = uint8(read(1))
	h.CopyrightIdentificationStart = uint8(read(1))
	h.FrameLength = uint16(read(13))
	h.BufferFullness = uint16(read(11))
	h.NumberOfRawDataBlocks = uint8(read(2))

	if h.FrameLength < uint16(h.HeaderLength()) {
		return h, base.NewErrShortBuffer(h.HeaderLength(), int(h.FrameLength), "adts frame length")
	}
	return h, nil
}

// HeaderLength protection_absent为0时，header后面还跟着2字节的crc
func (h *AdtsHeader) HeaderLength() int {
	if h.ProtectionAbsent == 0 {
		return AdtsHeaderLengthWithCrc
	}
	return AdtsHeaderLength
}

// PackTo 写入7字节的ADTS头，不写crc
func (h *AdtsHeader) PackTo(out []byte) {
	bw := bitrw.NewBitWriter(out[:AdtsHeaderLength])
	bw.WriteBits(12, uint32(h.Syncword))
	bw.WriteBits(1, uint32(h.Id))
	bw.WriteBits(2, uint32(h.Layer))
	bw.WriteBits(1, uint32(h.ProtectionAbsent))
	bw.WriteBits(2, uint32(h.Profile))
	bw.WriteBits(4, uint32(h.SamplingFrequencyIndex))
	bw.WriteBits(1, uint32(h.PrivateBit))
	bw.WriteBits(3, uint32(h.ChannelConfiguration))
	bw.WriteBits(1, uint32(h.OriginalCopy))
	bw.WriteBits(1, uint32(h.Home))
	bw.WriteBits(1, uint32(h.CopyrightIdentificationBit))
	bw.WriteBits(1, uint32(h.CopyrightIdentificationStart))
	bw.WriteBits(13, uint32(h.FrameLength))
	bw.WriteBits(11, uint32(h.BufferFullness))
	bw.WriteBits(2, uint32(h.NumberOfRawDataBlocks))
}

// MakeAscWithAdtsHeader
//
// @param adtsHeader: 函数调用结束后，内部不持有该内存块
//
// @return asc: 内存块为独立新申请；函数调用结束后，内部不持有该内存块
func MakeAscWithAdtsHeader(adtsHeader []byte) (asc []byte, err error) {
	h, err := ParseAdtsHeader(adtsHeader)
	if err != nil {
		return nil, err
	}
	return NewAscContextWithAdtsHeader(&h).Pack(), nil
}

// SplitAdtsFrames 将连续的ADTS流切分成帧，每一帧包含ADTS头
//
// @return 返回的帧是 `b` 的子切片
//
//	如果中途解析失败，返回已经切分好的帧以及错误
func SplitAdtsFrames(b []byte) ([][]byte, error) {
	var ret [][]byte
	for pos := 0; pos < len(b); {
		h, err := ParseAdtsHeader(b[pos:])
		if err != nil {
			return ret, err
		}
		n := int(h.FrameLength)
		if n > len(b)-pos {
			return ret, base.NewErrShortBuffer(n, len(b)-pos, "adts frame")
		}
		ret = append(ret, b[pos:pos+n])
		pos += n
	}
	return ret, nil
}
