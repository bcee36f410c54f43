package utils

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/Perceptus-Labs/samvaad-go-sdk/models"
	"go.uber.org/zap"
)

// CameraCapture grabs single JPEG frames from a local camera through ffmpeg.
type CameraCapture struct {
	DeviceID int
	Timeout  time.Duration
	logger   *zap.Logger
	clock    Clock
}

func NewCameraCapture(deviceID int, logger *zap.Logger) *CameraCapture {
	return &CameraCapture{
		DeviceID: deviceID,
		Timeout:  5 * time.Second,
		logger:   logger,
		clock:    RealClock{},
	}
}

// Snapshot implements the snapshot source contract: a failed capture is
// reported as "no frame", never as an error.
func (c *CameraCapture) Snapshot() (models.Snapshot, bool) {
	data, err := c.TryCapture()
	if err != nil {
		c.logger.Warn("Camera not ready, skipping tick", zap.Error(err))
		return models.Snapshot{}, false
	}
	return models.Snapshot{Data: data, MimeType: "image/jpeg", CapturedAt: c.clock.Now()}, true
}

func (c *CameraCapture) ffmpegInput() ([]string, error) {
	switch runtime.GOOS {
	case "darwin":
		return []string{"-f", "avfoundation", "-video_size", "640x480", "-framerate", "30", "-i", fmt.Sprintf("%d", c.DeviceID)}, nil
	case "linux":
		return []string{"-f", "v4l2", "-video_size", "640x480", "-i", fmt.Sprintf("/dev/video%d", c.DeviceID)}, nil
	case "windows":
		return []string{"-f", "dshow", "-video_size", "640x480", "-i", "video=USB Camera"}, nil
	}
	return nil, fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
}

// CaptureImage captures one frame and returns it as JPEG bytes.
func (c *CameraCapture) CaptureImage() ([]byte, error) {
	input, err := c.ffmpegInput()
	if err != nil {
		return nil, err
	}
	args := append(input, "-vframes", "1", "-f", "image2pipe", "-vcodec", "mjpeg", "-q:v", "2", "-")

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	output, err := exec.CommandContext(ctx, "ffmpeg", args...).Output()
	if err != nil {
		return nil, fmt.Errorf("failed to capture image: %w", err)
	}
	if len(output) == 0 {
		return nil, fmt.Errorf("no image data captured")
	}

	c.logger.Debug("Captured camera frame", zap.Int("size", len(output)))
	return output, nil
}

// CaptureImageMacOS uses imagesnap, which works on machines without ffmpeg.
func (c *CameraCapture) CaptureImageMacOS() ([]byte, error) {
	if runtime.GOOS != "darwin" {
		return nil, fmt.Errorf("imagesnap is only available on macOS")
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	output, err := exec.CommandContext(ctx, "imagesnap", "-d", fmt.Sprintf("%d", c.DeviceID), "-f", "jpeg", "-").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to capture image with imagesnap: %w", err)
	}
	if len(output) == 0 {
		return nil, fmt.Errorf("no image data captured")
	}
	return output, nil
}

// TryCapture attempts ffmpeg first and falls back to imagesnap on macOS.
func (c *CameraCapture) TryCapture() ([]byte, error) {
	data, err := c.CaptureImage()
	if err == nil {
		return data, nil
	}

	if runtime.GOOS == "darwin" {
		c.logger.Debug("ffmpeg capture failed, trying imagesnap", zap.Error(err))
		if data, altErr := c.CaptureImageMacOS(); altErr == nil {
			return data, nil
		}
	}
	return nil, err
}
