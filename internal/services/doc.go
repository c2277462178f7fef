// Package services defines the [Oracle] interface for image classifiers and implements it for a remote
// inference endpoint and an on-device TensorFlow Lite model.
//
// # Oracle Interface
//
// An oracle receives the raw and decoded image and returns predictions ranked best first. Callers take the
// first prediction; oracles never retry.
//
// # HTTP Implementation
//
// [HTTPOracle] posts the image bytes to an inference endpoint and decodes a JSON list of predictions.
// When client credentials are configured, requests carry an OAuth2 bearer token obtained and refreshed
// through [clientcredentials.Config]. Requests are paced with a [rate.Limiter].
//
// # TFLite Implementation
//
// [TFLiteOracle] runs a classification model in process. It needs cgo and the TensorFlow Lite C library,
// so it is only built with -tags tflite. Other builds get a constructor that returns [shared.ErrNotImplemented].
//
// Image preprocessing ([Float32Tensor], [Uint8Tensor]) and score ranking ([Rank], [Softmax]) are pure Go and
// always available.
package services
