// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lalflv
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package flv

import (
	"github.com/q191201771/lalflv/pkg/aac"
	"github.com/q191201771/lalflv/pkg/base"
	"github.com/q191201771/naza/pkg/bele"
)

// 各类tag的打包函数
//
// 都是先计算body的大小，再一次性申请 11 + dataSize + 4 字节的内存块
// 除 PackAvcNaluTag 外，body大小超过 MaxTagDataSize 属于调用方的错误，会panic

// PackAvcSeqHeaderTag
//
// @param dcr: avcC，参考 avc.BuildDecoderConfigurationRecord
// @param cts: composition time，pts - dts
func PackAvcSeqHeaderTag(dcr []byte, timestamp uint32, cts int32) []byte {
	out, body := newTag(base.FlvTagTypeVideo, 5+len(dcr), timestamp)
	packAvcPacketHeader(body, base.FlvAvcKeyFrame, base.FlvAvcPacketTypeSeqHeader, cts)
	copy(body[5:], dcr)
	return out
}

// PackAvcNaluTag 每个nalu前面加上4字节大端的长度
//
// @param nals: 不包含起始码
//
// @return err: 帧太大，一个tag放不下时返回 base.ErrFlvTagTooLarge
func PackAvcNaluTag(nals [][]byte, isKeyFrame bool, timestamp uint32, cts int32) ([]byte, error) {
	dataSize := 5
	for _, nal := range nals {
		dataSize += 4 + len(nal)
	}
	if dataSize > MaxTagDataSize {
		return nil, base.NewErrFlvTagTooLarge(dataSize)
	}
	out, body := newTag(base.FlvTagTypeVideo, dataSize, timestamp)
	frame := base.FlvAvcInterFrame
	if isKeyFrame {
		frame = base.FlvAvcKeyFrame
	}
	packAvcPacketHeader(body, frame, base.FlvAvcPacketTypeNalu, cts)
	pos := 5
	for _, nal := range nals {
		bele.BePutUint32(body[pos:], uint32(len(nal)))
		pos += 4
		pos += copy(body[pos:], nal)
	}
	return out, nil
}

// PackAvcEosTag end of sequence，body只有5字节
func PackAvcEosTag(timestamp uint32) []byte {
	out, body := newTag(base.FlvTagTypeVideo, 5, timestamp)
	packAvcPacketHeader(body, base.FlvAvcKeyFrame, base.FlvAvcPacketTypeEos, 0)
	return out
}

// PackAacSeqHeaderTag
//
// @param asc: 2字节的AudioSpecificConfig
func PackAacSeqHeaderTag(asc []byte, timestamp uint32) []byte {
	out, body := newTag(base.FlvTagTypeAudio, 2+len(asc), timestamp)
	body[0] = base.FlvAacSoundHeader
	body[1] = base.FlvAacPacketTypeSeqHeader
	copy(body[2:], asc)
	return out
}

// PackAacRawTag
//
// @param raw: 不包含ADTS头的aac数据
func PackAacRawTag(raw []byte, timestamp uint32) []byte {
	out, body := newTag(base.FlvTagTypeAudio, 2+len(raw), timestamp)
	body[0] = base.FlvAacSoundHeader
	body[1] = base.FlvAacPacketTypeRaw
	copy(body[2:], raw)
	return out
}

// PackAacRawTagWithAdts 去除ADTS头（包括可能存在的crc）后打包
func PackAacRawTagWithAdts(adtsFrame []byte, timestamp uint32) ([]byte, error) {
	h, err := aac.ParseAdtsHeader(adtsFrame)
	if err != nil {
		return nil, err
	}
	hl := h.HeaderLength()
	if len(adtsFrame) < hl {
		return nil, base.NewErrShortBuffer(hl, len(adtsFrame), "adts frame")
	}
	end := int(h.FrameLength)
	if end > len(adtsFrame) {
		end = len(adtsFrame)
	}
	return PackAacRawTag(adtsFrame[hl:end], timestamp), nil
}

// PackMetadataTag
//
// @param script: amf0编码后的script data，参考 MetaData.Pack
func PackMetadataTag(script []byte, timestamp uint32) []byte {
	return PackTag(base.FlvTagTypeMetadata, timestamp, script)
}

// <spec-video_file_format_spec_v10.pdf>, <Video tags, VIDEODATA>
// FrameType       [4b]
// CodecId         [4b]
// AVCPacketType   [8b]
// CompositionTime [24b] SI24
func packAvcPacketHeader(out []byte, frame uint8, packetType uint8, cts int32) {
	out[0] = frame
	out[1] = packetType
	bele.BePutUint24(out[2:], uint32(cts)&0xffffff)
}
