// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lalflv
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package avc

import (
	"encoding/hex"

	"github.com/q191201771/lalflv/pkg/base"
	"github.com/q191201771/lalflv/pkg/bitrw"
	"github.com/q191201771/naza/pkg/nazabytes"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

// Sps
//
// ISO-14496-10.pdf
// 7.3.2.1.1 Sequence parameter set data syntax
//
// 只保留了生成avcC以及metadata所需的字段
type Sps struct {
	ProfileIdc      uint8
	ConstraintFlags uint8 // constraint_set0_flag ~ constraint_set5_flag，以及2bit的reserved_zero_2bits
	LevelIdc        uint8
	SpsId           uint32

	ChromaFormatIdc         uint32
	SeparateColourPlaneFlag bool
	BitDepthLumaMinus8      uint32
	BitDepthChromaMinus8    uint32

	PicOrderCntType     uint32
	PicWidthInMbs       uint32
	PicHeightInMapUnits uint32
	FrameMbsOnlyFlag    bool

	FrameCropLeftOffset   uint32
	FrameCropRightOffset  uint32
	FrameCropTopOffset    uint32
	FrameCropBottomOffset uint32
}

// IsHighProfile profile_idc是否会携带chroma_format_idc等扩展字段
//
// 这些profile在avcC中也需要额外写入扩展字段
func IsHighProfile(profileIdc uint8) bool {
	switch profileIdc {
	case 100, 110, 122, 244, 44, 83, 86, 118, 128, 138, 139, 134:
		return true
	}
	return false
}

// Width 分辨率宽
//
// 注意，裁剪值直接按像素减去，没有按chroma_format_idc换算成CropUnitX（4:2:0时为2）
// 这是一个已知的简化，保留它是为了和已有的输出保持一致
func (sps *Sps) Width() uint32 {
	return 16*sps.PicWidthInMbs - sps.FrameCropLeftOffset - sps.FrameCropRightOffset
}

// Height 分辨率高，同 Width ，裁剪值没有换算
func (sps *Sps) Height() uint32 {
	return 16*sps.PicHeightInMapUnits - sps.FrameCropTopOffset - sps.FrameCropBottomOffset
}

func (sps *Sps) BitDepthLuma() uint32 {
	return sps.BitDepthLumaMinus8 + 8
}

func (sps *Sps) BitDepthChroma() uint32 {
	return sps.BitDepthChromaMinus8 + 8
}

// ParseSps
//
// @param nalu: 包含1字节nalu header，不包含起始码
func ParseSps(nalu []byte) (Sps, error) {
	var sps Sps
	if len(nalu) < 4 {
		return sps, base.NewErrShortBuffer(4, len(nalu), "sps")
	}
	if ParseNaluType(nalu[0]) != NaluTypeSps {
		return sps, base.ErrAvcNotSps
	}

	rbsp := ExtractRbsp(nalu)
	br := bitrw.NewBitReader(rbsp)
	if err := parseSps(&br, &sps); err != nil {
		Log.Warnf("parse sps failed. err=%+v, nalu=%s", err, hex.Dump(nazabytes.Prefix(nalu, 128)))
		return sps, err
	}
	return sps, nil
}

func parseSps(br *bitrw.BitReader, sps *Sps) error {
	v, err := br.ReadBits(8)
	if err != nil {
		return nazaerrors.Wrap(err)
	}
	sps.ProfileIdc = uint8(v)
	if v, err = br.ReadBits(8); err != nil {
		return nazaerrors.Wrap(err)
	}
	sps.ConstraintFlags = uint8(v)
	if v, err = br.ReadBits(8); err != nil {
		return nazaerrors.Wrap(err)
	}
	sps.LevelIdc = uint8(v)
	if sps.SpsId, err = br.ReadUe(); err != nil {
		return nazaerrors.Wrap(err)
	}

	// 默认值，非High系列profile不携带这些字段
	sps.ChromaFormatIdc = 1
	if IsHighProfile(sps.ProfileIdc) {
		if sps.ChromaFormatIdc, err = br.ReadUe(); err != nil {
			return nazaerrors.Wrap(err)
		}
		if sps.ChromaFormatIdc == 3 {
			if sps.SeparateColourPlaneFlag, err = br.ReadFlag(); err != nil {
				return nazaerrors.Wrap(err)
			}
		}
		if sps.BitDepthLumaMinus8, err = br.ReadUe(); err != nil {
			return nazaerrors.Wrap(err)
		}
		if sps.BitDepthChromaMinus8, err = br.ReadUe(); err != nil {
			return nazaerrors.Wrap(err)
		}
		// qpprime_y_zero_transform_bypass_flag
		if _, err = br.ReadFlag(); err != nil {
			return nazaerrors.Wrap(err)
		}
		seqScalingMatrixPresentFlag, err := br.ReadFlag()
		if err != nil {
			return nazaerrors.Wrap(err)
		}
		if seqScalingMatrixPresentFlag {
			count := 8
			if sps.ChromaFormatIdc == 3 {
				count = 12
			}
			if err = skipScalingMatrix(br, count); err != nil {
				return err
			}
		}
	}

	// log2_max_frame_num_minus4
	if _, err = br.ReadUe(); err != nil {
		return nazaerrors.Wrap(err)
	}
	if sps.PicOrderCntType, err = br.ReadUe(); err != nil {
		return nazaerrors.Wrap(err)
	}
	switch sps.PicOrderCntType {
	case 0:
		// log2_max_pic_order_cnt_lsb_minus4
		if _, err = br.ReadUe(); err != nil {
			return nazaerrors.Wrap(err)
		}
	case 1:
		// delta_pic_order_always_zero_flag
		if _, err = br.ReadFlag(); err != nil {
			return nazaerrors.Wrap(err)
		}
		// offset_for_non_ref_pic, offset_for_top_to_bottom_field
		for i := 0; i < 2; i++ {
			if _, err = br.ReadSe(); err != nil {
				return nazaerrors.Wrap(err)
			}
		}
		numRefFramesInPicOrderCntCycle, err := br.ReadUe()
		if err != nil {
			return nazaerrors.Wrap(err)
		}
		if numRefFramesInPicOrderCntCycle > 255 {
			return nazaerrors.Wrap(base.ErrAvc)
		}
		for i := uint32(0); i < numRefFramesInPicOrderCntCycle; i++ {
			if _, err = br.ReadSe(); err != nil {
				return nazaerrors.Wrap(err)
			}
		}
	}

	// max_num_ref_frames
	if _, err = br.ReadUe(); err != nil {
		return nazaerrors.Wrap(err)
	}
	// gaps_in_frame_num_value_allowed_flag
	if _, err = br.ReadFlag(); err != nil {
		return nazaerrors.Wrap(err)
	}
	if v, err = br.ReadUe(); err != nil {
		return nazaerrors.Wrap(err)
	}
	sps.PicWidthInMbs = v + 1
	if v, err = br.ReadUe(); err != nil {
		return nazaerrors.Wrap(err)
	}
	sps.PicHeightInMapUnits = v + 1
	if sps.FrameMbsOnlyFlag, err = br.ReadFlag(); err != nil {
		return nazaerrors.Wrap(err)
	}
	if !sps.FrameMbsOnlyFlag {
		// mb_adaptive_frame_field_flag
		if _, err = br.ReadFlag(); err != nil {
			return nazaerrors.Wrap(err)
		}
	}
	// direct_8x8_inference_flag
	if _, err = br.ReadFlag(); err != nil {
		return nazaerrors.Wrap(err)
	}
	frameCroppingFlag, err := br.ReadFlag()
	if err != nil {
		return nazaerrors.Wrap(err)
	}
	if frameCroppingFlag {
		for _, p := range []*uint32{&sps.FrameCropLeftOffset, &sps.FrameCropRightOffset, &sps.FrameCropTopOffset, &sps.FrameCropBottomOffset} {
			if *p, err = br.ReadUe(); err != nil {
				return nazaerrors.Wrap(err)
			}
		}
	}
	if sps.FrameCropLeftOffset+sps.FrameCropRightOffset >= 16*sps.PicWidthInMbs ||
		sps.FrameCropTopOffset+sps.FrameCropBottomOffset >= 16*sps.PicHeightInMapUnits {
		return nazaerrors.Wrap(base.ErrAvc)
	}
	// 后面的vui_parameters不关心
	return nil
}

// skipScalingMatrix 解析并丢弃scaling_list
//
// 7.3.2.1.1.1 Scaling list syntax
func skipScalingMatrix(br *bitrw.BitReader, count int) error {
	for i := 0; i < count; i++ {
		present, err := br.ReadFlag()
		if err != nil {
			return nazaerrors.Wrap(err)
		}
		if !present {
			continue
		}
		size := 16
		if i >= 6 {
			size = 64
		}
		lastScale, nextScale := int32(8), int32(8)
		for j := 0; j < size; j++ {
			if nextScale != 0 {
				deltaScale, err := br.ReadSe()
				if err != nil {
					return nazaerrors.Wrap(err)
				}
				nextScale = (lastScale + deltaScale + 256) % 256
			}
			if nextScale != 0 {
				lastScale = nextScale
			}
		}
	}
	return nil
}
