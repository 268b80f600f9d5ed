package capture

import (
	"fmt"

	"gocv.io/x/gocv"
)

// FromCamera grabs a single frame from a video device and encodes it as JPEG.
// deviceID 0 is the default webcam.
func FromCamera(deviceID int) (Attachment, error) {
	cam, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return Attachment{}, fmt.Errorf("cannot open camera %d: %w", deviceID, err)
	}
	defer cam.Close()

	img := gocv.NewMat()
	defer img.Close()

	if ok := cam.Read(&img); !ok || img.Empty() {
		return Attachment{}, fmt.Errorf("cannot read frame from camera %d", deviceID)
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img)
	if err != nil {
		return Attachment{}, fmt.Errorf("cannot encode frame: %w", err)
	}
	defer buf.Close()

	return FromBytes(buf.GetBytes(), "image/jpeg", "camera.jpg")
}
