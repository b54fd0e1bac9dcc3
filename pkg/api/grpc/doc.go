// Package grpc exposes the standard gRPC health service so orchestrators
// can probe the relay without HTTP.
package grpc
