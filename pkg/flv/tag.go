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
	"github.com/q191201771/naza/pkg/bele"
)

const (
	TagHeaderSize        = 11
	PrevTagSizeFieldSize = 4

	FlvHeaderSize = 9

	// MaxTagDataSize tag header中DataSize字段只有24位
	MaxTagDataSize = 0xFFFFFF

	// FlvHeaderSize + PreviousTagSize0
	FlvHeaderWithPrevTagSize = FlvHeaderSize + PrevTagSizeFieldSize

	flvHeaderFlagVideo = 0x01
	flvHeaderFlagAudio = 0x04
)

type TagHeader struct {
	Type      uint8  // type
	DataSize  uint32 // body大小，不包含 header 和 prev tag size 字段
	Timestamp uint32 // 绝对时间戳，单位毫秒
	StreamId  uint32 // always 0
}

type Tag struct {
	Header TagHeader
	Raw    []byte // 结构为 (11字节的 tag header) + (body) + (4字节的 prev tag size)
}

func (tag *Tag) Payload() []byte {
	return tag.Raw[TagHeaderSize : len(tag.Raw)-PrevTagSizeFieldSize]
}

func (tag *Tag) IsMetadata() bool {
	return tag.Header.Type == base.FlvTagTypeMetadata
}

func (tag *Tag) IsAvc() bool {
	return tag.Header.Type == base.FlvTagTypeVideo && tag.Header.DataSize > 0 && tag.Raw[TagHeaderSize]&0xf == base.FlvCodecIdAvc
}

func (tag *Tag) IsAvcKeySeqHeader() bool {
	return tag.isVideoPacket(base.FlvAvcKeyFrame, base.FlvAvcPacketTypeSeqHeader)
}

func (tag *Tag) IsAvcKeyNalu() bool {
	return tag.isVideoPacket(base.FlvAvcKeyFrame, base.FlvAvcPacketTypeNalu)
}

func (tag *Tag) IsAvcInterNalu() bool {
	return tag.isVideoPacket(base.FlvAvcInterFrame, base.FlvAvcPacketTypeNalu)
}

func (tag *Tag) IsAvcEos() bool {
	return tag.Header.Type == base.FlvTagTypeVideo && tag.Header.DataSize >= 2 && tag.Raw[TagHeaderSize+1] == base.FlvAvcPacketTypeEos
}

func (tag *Tag) IsAacSeqHeader() bool {
	return tag.isAudioPacket(base.FlvAacPacketTypeSeqHeader)
}

func (tag *Tag) IsAacRaw() bool {
	return tag.isAudioPacket(base.FlvAacPacketTypeRaw)
}

// CompositionTime 视频NALU tag中的cts，有符号24位
func (tag *Tag) CompositionTime() int32 {
	if tag.Header.Type != base.FlvTagTypeVideo || tag.Header.DataSize < 5 {
		return 0
	}
	v := int32(bele.BeUint24(tag.Raw[TagHeaderSize+2:]))
	if v&0x800000 != 0 {
		v -= 1 << 24
	}
	return v
}

// PrevTagSize tag尾部的prev tag size字段
func (tag *Tag) PrevTagSize() uint32 {
	return bele.BeUint32(tag.Raw[len(tag.Raw)-PrevTagSizeFieldSize:])
}

func (tag *Tag) ModTagTimestamp(timestamp uint32) {
	tag.Header.Timestamp = timestamp
	bele.BePutUint24(tag.Raw[4:], timestamp&0xffffff)
	tag.Raw[7] = byte(timestamp >> 24)
}

func (tag *Tag) isVideoPacket(frame, packetType uint8) bool {
	return tag.Header.Type == base.FlvTagTypeVideo && tag.Header.DataSize >= 2 &&
		tag.Raw[TagHeaderSize] == frame && tag.Raw[TagHeaderSize+1] == packetType
}

func (tag *Tag) isAudioPacket(packetType uint8) bool {
	return tag.Header.Type == base.FlvTagTypeAudio && tag.Header.DataSize >= 2 &&
		tag.Raw[TagHeaderSize]>>4 == base.FlvSoundFormatAac && tag.Raw[TagHeaderSize+1] == packetType
}

// PackFlvHeader 9字节的flv header，以及4字节的PreviousTagSize0
func PackFlvHeader(hasAudio, hasVideo bool) []byte {
	out := make([]byte, FlvHeaderWithPrevTagSize)
	out[0] = 'F'
	out[1] = 'L'
	out[2] = 'V'
	out[3] = 1
	if hasAudio {
		out[4] |= flvHeaderFlagAudio
	}
	if hasVideo {
		out[4] |= flvHeaderFlagVideo
	}
	bele.BePutUint32(out[5:], FlvHeaderSize)
	// PreviousTagSize0 保持为0
	return out
}

// ParseFlvHeader
//
// @param b: 至少9字节
func ParseFlvHeader(b []byte) (hasAudio, hasVideo bool, err error) {
	if len(b) < FlvHeaderSize {
		return false, false, base.NewErrShortBuffer(FlvHeaderSize, len(b), "flv header")
	}
	if b[0] != 'F' || b[1] != 'L' || b[2] != 'V' || bele.BeUint32(b[5:]) < FlvHeaderSize {
		return false, false, base.ErrFlvInvalidHeader
	}
	return b[4]&flvHeaderFlagAudio != 0, b[4]&flvHeaderFlagVideo != 0, nil
}

// PackTagHeaderTo 写入11字节的tag header
//
// 5bit的tag type，以及前面的2bit reserved和1bit filter都为0。dataSize超过 MaxTagDataSize 时panic
func PackTagHeaderTo(out []byte, t uint8, dataSize uint32, timestamp uint32) {
	if dataSize > MaxTagDataSize {
		panic(base.NewErrFlvTagTooLarge(int(dataSize)))
	}
	out[0] = t & 0x1f
	bele.BePutUint24(out[1:], dataSize)
	bele.BePutUint24(out[4:], timestamp&0xffffff)
	out[7] = uint8(timestamp >> 24)
	out[8] = 0
	out[9] = 0
	out[10] = 0
}

// PackTag 打包一个序列化后的 tag 二进制buffer，包含 tag header，body，prev tag size
func PackTag(t uint8, timestamp uint32, in []byte) []byte {
	out, body := newTag(t, len(in), timestamp)
	copy(body, in)
	return out
}

// newTag 申请 11 + dataSize + 4 字节的内存块，写入tag header以及prev tag size
//
// dataSize超过 MaxTagDataSize 时panic，数据大小不受限的调用方需要自己先检查
//
// @return body: out中body部分的子切片，由调用方填充
func newTag(t uint8, dataSize int, timestamp uint32) (out []byte, body []byte) {
	if dataSize > MaxTagDataSize {
		panic(base.NewErrFlvTagTooLarge(dataSize))
	}
	out = make([]byte, TagHeaderSize+dataSize+PrevTagSizeFieldSize)
	PackTagHeaderTo(out, t, uint32(dataSize), timestamp)
	bele.BePutUint32(out[TagHeaderSize+dataSize:], uint32(TagHeaderSize+dataSize))
	return out, out[TagHeaderSize : TagHeaderSize+dataSize]
}

func ParseTagHeader(rawHeader []byte) TagHeader {
	var h TagHeader
	h.Type = rawHeader[0] & 0x1f
	h.DataSize = bele.BeUint24(rawHeader[1:])
	h.Timestamp = (uint32(rawHeader[7]) << 24) + bele.BeUint24(rawHeader[4:])
	h.StreamId = bele.BeUint24(rawHeader[8:])
	return h
}

// ReadTag 从 `rd` 中读取一个完整的tag，包含尾部的prev tag size
func ReadTag(rd io.Reader) (tag Tag, err error) {
	rawHeader := make([]byte, TagHeaderSize)
	if _, err = io.ReadFull(rd, rawHeader); err != nil {
		return
	}
	header := ParseTagHeader(rawHeader)

	needed := int(header.DataSize) + PrevTagSizeFieldSize
	tag.Header = header
	tag.Raw = make([]byte, TagHeaderSize+needed)
	copy(tag.Raw, rawHeader)

	if _, err = io.ReadFull(rd, tag.Raw[TagHeaderSize:]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return
	}
	return
}
