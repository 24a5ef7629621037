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
	"github.com/q191201771/lalflv/pkg/bitrw"
	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

// DecoderConfigurationRecord
//
// H.264-AVC-ISO_IEC_14496-15.pdf
// 5.2.4 Decoder configuration information
//
//	aligned(8) class AVCDecoderConfigurationRecord {
//	  unsigned int(8) configurationVersion = 1;
//	  unsigned int(8) AVCProfileIndication;
//	  unsigned int(8) profile_compatibility;
//	  unsigned int(8) AVCLevelIndication;
//	  bit(6) reserved = '111111'b;
//	  unsigned int(2) lengthSizeMinusOne;
//	  bit(3) reserved = '111'b;
//	  unsigned int(5) numOfSequenceParameterSets;
//	  for (i=0; i< numOfSequenceParameterSets; i++) {
//	    unsigned int(16) sequenceParameterSetLength ;
//	    bit(8*sequenceParameterSetLength) sequenceParameterSetNALUnit;
//	  }
//	  unsigned int(8) numOfPictureParameterSets;
//	  for (i=0; i< numOfPictureParameterSets; i++) {
//	    unsigned int(16) pictureParameterSetLength;
//	    bit(8*pictureParameterSetLength) pictureParameterSetNALUnit;
//	  }
//	  if( profile_idc == 100 || profile_idc == 110 ||
//	      profile_idc == 122 || profile_idc == 144 )
//	  {
//	    bit(6) reserved = '111111'b;
//	    unsigned int(2) chroma_format;
//	    bit(5) reserved = '11111'b;
//	    unsigned int(3) bit_depth_luma_minus8;
//	    bit(5) reserved = '11111'b;
//	    unsigned int(3) bit_depth_chroma_minus8;
//	    unsigned int(8) numOfSequenceParameterSetExt;
//	    ...
//	  }
//	}
type DecoderConfigurationRecord struct {
	ConfigurationVersion uint8
	AvcProfileIndication uint8
	ProfileCompatibility uint8
	AvcLevelIndication   uint8
	LengthSizeMinusOne   uint8
	SpsList              [][]byte
	PpsList              [][]byte

	HasExt               bool
	ChromaFormat         uint8
	BitDepthLumaMinus8   uint8
	BitDepthChromaMinus8 uint8
}

// NewDecoderConfigurationRecord 使用一个sps和一个pps构造
//
// @param sps: 包含1字节nalu header，不包含起始码
// @param pps: 同上
func NewDecoderConfigurationRecord(sps, pps []byte) (DecoderConfigurationRecord, error) {
	var dcr DecoderConfigurationRecord
	if len(sps) < 4 {
		return dcr, base.NewErrShortBuffer(4, len(sps), "avcc sps")
	}
	if len(pps) == 0 {
		return dcr, base.NewErrShortBuffer(1, 0, "avcc pps")
	}
	if len(sps) > 0xffff || len(pps) > 0xffff {
		return dcr, base.ErrAvcNaluSize
	}

	dcr.ConfigurationVersion = 1
	dcr.AvcProfileIndication = sps[1]
	dcr.ProfileCompatibility = sps[2]
	dcr.AvcLevelIndication = sps[3]
	dcr.LengthSizeMinusOne = 3
	dcr.SpsList = [][]byte{sps}
	dcr.PpsList = [][]byte{pps}

	if IsHighProfile(dcr.AvcProfileIndication) {
		ctx, err := ParseSps(sps)
		if err != nil {
			return dcr, err
		}
		dcr.HasExt = true
		dcr.ChromaFormat = uint8(ctx.ChromaFormatIdc)
		dcr.BitDepthLumaMinus8 = uint8(ctx.BitDepthLumaMinus8)
		dcr.BitDepthChromaMinus8 = uint8(ctx.BitDepthChromaMinus8)
	}
	return dcr, nil
}

// BuildDecoderConfigurationRecord 使用sps和pps生成avcC
//
// @return 新申请的内存块，可直接作为flv video seq header tag在5字节头之后的payload
func BuildDecoderConfigurationRecord(sps, pps []byte) ([]byte, error) {
	dcr, err := NewDecoderConfigurationRecord(sps, pps)
	if err != nil {
		return nil, err
	}
	return dcr.Pack(), nil
}

func (dcr *DecoderConfigurationRecord) PackSize() int {
	n := 6 + 1
	for _, sps := range dcr.SpsList {
		n += 2 + len(sps)
	}
	for _, pps := range dcr.PpsList {
		n += 2 + len(pps)
	}
	if dcr.HasExt {
		n += 4
	}
	return n
}

func (dcr *DecoderConfigurationRecord) Pack() []byte {
	out := make([]byte, dcr.PackSize())

	bw := bitrw.NewBitWriter(out[:6])
	bw.WriteBits(8, uint32(dcr.ConfigurationVersion))
	bw.WriteBits(8, uint32(dcr.AvcProfileIndication))
	bw.WriteBits(8, uint32(dcr.ProfileCompatibility))
	bw.WriteBits(8, uint32(dcr.AvcLevelIndication))
	bw.WriteBits(6, 0x3f)
	bw.WriteBits(2, uint32(dcr.LengthSizeMinusOne))
	bw.WriteBits(3, 0x7)
	bw.WriteBits(5, uint32(len(dcr.SpsList)))

	pos := 6
	for _, sps := range dcr.SpsList {
		bele.BePutUint16(out[pos:], uint16(len(sps)))
		pos += 2
		pos += copy(out[pos:], sps)
	}
	out[pos] = uint8(len(dcr.PpsList))
	pos++
	for _, pps := range dcr.PpsList {
		bele.BePutUint16(out[pos:], uint16(len(pps)))
		pos += 2
		pos += copy(out[pos:], pps)
	}

	if dcr.HasExt {
		bw = bitrw.NewBitWriter(out[pos:])
		bw.WriteBits(6, 0x3f)
		bw.WriteBits(2, uint32(dcr.ChromaFormat))
		bw.WriteBits(5, 0x1f)
		bw.WriteBits(3, uint32(dcr.BitDepthLumaMinus8))
		bw.WriteBits(5, 0x1f)
		bw.WriteBits(3, uint32(dcr.BitDepthChromaMinus8))
		bw.WriteBits(8, 0) // numOfSequenceParameterSetExt
	}
	return out
}

// ParseDecoderConfigurationRecord 解析avcC
//
// 返回的sps、pps是 `b` 的子切片
func ParseDecoderConfigurationRecord(b []byte) (dcr DecoderConfigurationRecord, err error) {
	br := bitrw.NewBitReader(b)
	read8 := func(n uint) uint8 {
		if err != nil {
			return 0
		}
		var v uint32
		v, err = br.ReadBits(n)
		return uint8(v)
	}

	dcr.ConfigurationVersion = read8(8)
	dcr.AvcProfileIndication = read8(8)
	dcr.ProfileCompatibility = read8(8)
	dcr.AvcLevelIndication = read8(8)
	_ = read8(6)
	dcr.LengthSizeMinusOne = read8(2)
	_ = read8(3)
	numOfSps := read8(5)
	if err != nil {
		return dcr, nazaerrors.Wrap(err)
	}

	pos := 6
	readList := func(num int) ([][]byte, error) {
		var list [][]byte
		for i := 0; i < num; i++ {
			if len(b)-pos < 2 {
				return nil, base.NewErrShortBuffer(pos+2, len(b), "avcc parameter set length")
			}
			l := int(bele.BeUint16(b[pos:]))
			pos += 2
			if len(b)-pos < l {
				return nil, base.NewErrShortBuffer(pos+l, len(b), "avcc parameter set")
			}
			list = append(list, b[pos:pos+l])
			pos += l
		}
		return list, nil
	}

	if dcr.SpsList, err = readList(int(numOfSps)); err != nil {
		return dcr, err
	}
	if len(b)-pos < 1 {
		return dcr, base.NewErrShortBuffer(pos+1, len(b), "avcc num of pps")
	}
	numOfPps := int(b[pos])
	pos++
	if dcr.PpsList, err = readList(numOfPps); err != nil {
		return dcr, err
	}

	// 部分编码器在High profile下也不写扩展字段，所以长度不足时不认为是错误
	if IsHighProfile(dcr.AvcProfileIndication) && len(b)-pos >= 4 {
		dcr.HasExt = true
		dcr.ChromaFormat = b[pos] & 0x03
		dcr.BitDepthLumaMinus8 = b[pos+1] & 0x07
		dcr.BitDepthChromaMinus8 = b[pos+2] & 0x07
	}
	return dcr, nil
}

// ParseSeqHeader 从flv video seq header tag的payload中解析sps和pps，只取第一个
//
// @param payload: flv tag的payload部分，包含5字节的头
func ParseSeqHeader(payload []byte) (sps, pps []byte, err error) {
	if len(payload) < 5 {
		return nil, nil, base.NewErrShortBuffer(5, len(payload), "avc seq header")
	}
	if payload[0] != base.FlvAvcKeyFrame || payload[1] != base.FlvAvcPacketTypeSeqHeader {
		return nil, nil, base.ErrAvc
	}
	dcr, err := ParseDecoderConfigurationRecord(payload[5:])
	if err != nil {
		return nil, nil, err
	}
	if len(dcr.SpsList) == 0 || len(dcr.PpsList) == 0 {
		return nil, nil, base.ErrAvc
	}
	return dcr.SpsList[0], dcr.PpsList[0], nil
}
