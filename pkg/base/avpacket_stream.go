// Copyright 2023, Chef.  All rights reserved.
// https://github.com/q191201771/lalflv
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

type (
	AvPacketStreamAudioFormat int
	AvPacketStreamVideoFormat int
)

const (
	AvPacketStreamAudioFormatUnknown AvPacketStreamAudioFormat = 0
	AvPacketStreamAudioFormatRawAac  AvPacketStreamAudioFormat = 1
	AvPacketStreamAudioFormatAdtsAac AvPacketStreamAudioFormat = 2

	AvPacketStreamVideoFormatUnknown AvPacketStreamVideoFormat = 0
	AvPacketStreamVideoFormatAvcc    AvPacketStreamVideoFormat = 1
	AvPacketStreamVideoFormatAnnexb  AvPacketStreamVideoFormat = 2
)

type AvPacketStreamOption struct {
	AudioFormat AvPacketStreamAudioFormat
	VideoFormat AvPacketStreamVideoFormat // 视频流的格式，注意，不是指编码格式，而是编码格式确定后，流的格式
}

// DefaultApsOption ts文件以及裸流文件读出来的就是这种格式
var DefaultApsOption = AvPacketStreamOption{
	AudioFormat: AvPacketStreamAudioFormatAdtsAac,
	VideoFormat: AvPacketStreamVideoFormatAnnexb,
}

type IAvPacketStream interface {
	// WithOption 修改配置项
	WithOption(modOption func(option *AvPacketStreamOption))

	// FeedAudioSpecificConfig 传入音频AAC的初始化数据
	//
	// 仅当 AudioFormat 为 AvPacketStreamAudioFormatRawAac 时需要，并且需要在第一个音频 FeedAvPacket 之前调用
	FeedAudioSpecificConfig(asc []byte) error

	// FeedAvPacket
	//
	// @param packet:
	//
	// PayloadType: 类型，支持avc(h264)，aac
	//
	// Timestamp: dts，单位毫秒。注意，是累计递增值，不是单个包的duration时长
	//
	// Pts: 单位毫秒，音频时忽略
	//
	// Payload: 音视频数据，格式由 AvPacketStreamOption 决定
	//
	// 如果是视频，支持Avcc和Annexb两种格式。
	// Avcc也即[<4字节长度 + nal>...]，Annexb也即[<4字节start code 00 00 00 01 + nal>...]。
	// 注意，sps和pps也通过 FeedAvPacket 传入，可以单独传入，也可以sps+pps+I帧组合在一起传入
	//
	FeedAvPacket(packet AvPacket) error
}
