package dicomweb

import (
	"bytes"
	"fmt"
)

// DefaultBoundary separates the parts of frame responses unless configured
// otherwise.
const DefaultBoundary = "pypx-dicomweb-frame-boundary"

const crlf = "\r\n"

// FramePart is one frame to be sent in a multipart/related body.
type FramePart struct {
	TransferSyntaxUID string
	Data              []byte
}

// EncodeFrames builds a multipart/related body holding frames in order:
//
//	--{boundary}\r\n
//	Content-Type: application/octet-stream; transfer-syntax={uid}\r\n
//	\r\n
//	{bytes}\r\n
//	--{boundary}--
func EncodeFrames(boundary string, frames ...FramePart) []byte {
	size := len(boundary) + 6
	for _, f := range frames {
		size += len(boundary) + len(f.TransferSyntaxUID) + len(f.Data) + 80
	}

	buf := bytes.NewBuffer(make([]byte, 0, size))
	for _, f := range frames {
		buf.WriteString("--" + boundary + crlf)
		buf.WriteString(PartHeader(f.TransferSyntaxUID))
		buf.WriteString(crlf + crlf)
		buf.Write(f.Data)
		buf.WriteString(crlf)
	}
	buf.WriteString("--" + boundary + "--")
	return buf.Bytes()
}

// PartHeader returns the Content-Type header line of a frame part, without
// its line terminator.
func PartHeader(transferSyntax string) string {
	return "Content-Type: application/octet-stream; transfer-syntax=" + transferSyntax
}

// ResponseContentType returns the Content-Type of a frame response body
// built with boundary.
func ResponseContentType(boundary string) string {
	return fmt.Sprintf(`multipart/related; type="application/octet-stream"; boundary=%s`, boundary)
}
