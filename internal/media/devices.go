package media

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

// PionDevices hands out pion sample tracks for the devices enabled in
// config. Samples are fed by whatever capture source the host provides.
type PionDevices struct {
	audio bool
	video bool
}

func NewPionDevices(audio, video bool) *PionDevices {
	return &PionDevices{audio: audio, video: video}
}

func (d *PionDevices) GetUserMedia(ctx context.Context, c Constraints) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !c.Audio && !c.Video {
		return nil, fmt.Errorf("%w: no audio or video requested", ErrNoDevice)
	}
	if c.Audio && !d.audio {
		return nil, fmt.Errorf("%w: microphone", ErrNoDevice)
	}
	if c.Video && !d.video {
		return nil, fmt.Errorf("%w: camera", ErrNoDevice)
	}

	streamID := uuid.NewString()
	s := NewStream(streamID)
	if c.Audio {
		local, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
			"audio-"+streamID, streamID)
		if err != nil {
			return nil, fmt.Errorf("audio track: %w", err)
		}
		s.AddTrack(newLocalTrack(local.ID(), KindAudio, local))
	}
	if c.Video {
		local, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
			"video-"+streamID, streamID)
		if err != nil {
			return nil, fmt.Errorf("video track: %w", err)
		}
		s.AddTrack(newLocalTrack(local.ID(), KindVideo, local))
	}
	return s, nil
}
