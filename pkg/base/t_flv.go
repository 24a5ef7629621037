// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lalflv
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

// spec-video_file_format_spec_v10.pdf
// FLV tags
//
//	TagType    UB[5] 8=audio 9=video 18=script data
//	DataSize   UI24
//	Timestamp  UI24
//	TimestampExtended UI8
//	StreamID   UI24 always 0
const (
	FlvTagTypeAudio    uint8 = 8
	FlvTagTypeVideo    uint8 = 9
	FlvTagTypeMetadata uint8 = 18

	// FlvFrameTypeKey
	//
	// Video tags
	//   VIDEODATA
	//     FrameType UB[4]
	//     CodecId   UB[4]
	//   AVCVIDEOPACKET
	//     AVCPacketType   UI8
	//     CompositionTime SI24
	//     Data            UI8[n]
	FlvFrameTypeKey   uint8 = 1
	FlvFrameTypeInter uint8 = 2

	FlvCodecIdAvc uint8 = 7

	FlvAvcPacketTypeSeqHeader uint8 = 0
	FlvAvcPacketTypeNalu      uint8 = 1
	FlvAvcPacketTypeEos       uint8 = 2

	FlvAvcKeyFrame   = FlvFrameTypeKey<<4 | FlvCodecIdAvc
	FlvAvcInterFrame = FlvFrameTypeInter<<4 | FlvCodecIdAvc

	// FlvSoundFormatAac
	//
	// Audio tags
	//   AUDIODATA
	//     SoundFormat UB[4] 10=AAC
	//     SoundRate   UB[2] 3=44kHz, AAC always 3
	//     SoundSize   UB[1] 1=16bit
	//     SoundType   UB[1] 1=stereo, AAC always 1
	//   AACAUDIODATA
	//     AACPacketType UI8
	//     Data          UI8[n]
	FlvSoundFormatAac  uint8 = 10 // 注意，视频的CodecId是后4位，音频是前4位
	FlvSoundRate44Khz  uint8 = 3
	FlvSoundSize16Bit  uint8 = 1
	FlvSoundTypeStereo uint8 = 1

	FlvAacPacketTypeSeqHeader uint8 = 0
	FlvAacPacketTypeRaw       uint8 = 1

	// 0xaf
	FlvAacSoundHeader = FlvSoundFormatAac<<4 | FlvSoundRate44Khz<<2 | FlvSoundSize16Bit<<1 | FlvSoundTypeStereo
)

const (
	// FlvAudioCodecIdAac 写入metadata中的audiocodecid
	FlvAudioCodecIdAac = 10

	// FlvVideoCodecIdAvc 写入metadata中的videocodecid
	FlvVideoCodecIdAvc = 7
)
