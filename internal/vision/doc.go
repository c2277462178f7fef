// Package vision is the classifier gateway: it decodes a photo, asks a [services.Oracle] for a label once,
// and validates the answer.
//
// It also provides the image helpers the library stores alongside each result:
//   - [Compress] re-encodes a photo as JPEG
//   - [Fingerprint] computes a 64-bit perceptual difference hash
//   - [CaptureTime] reads the EXIF DateTimeOriginal tag
//
// The gateway keeps no state between calls and is safe for concurrent use.
package vision
