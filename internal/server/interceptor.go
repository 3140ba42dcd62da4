package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// requestIDHeader carries the request id over http and grpc metadata.
const requestIDHeader = "x-request-id"

type requestIDKey struct{}

// WithRequestID tags every http request with an id, reusing the caller's
// X-Request-Id when present, and echoes it on the response.
func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func UnaryGrpcRequestTimeInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		log := logrus.WithFields(logrus.Fields{
			"method": info.FullMethod,
			"code":   status.Code(err).String(),
		})
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if ids := md.Get(requestIDHeader); len(ids) > 0 {
				log = log.WithField("request", ids[0])
			}
		}
		log.Debugf("request time: %v", time.Since(start))

		return resp, err
	}
}

// UnaryRequestTimeInterceptor forwards the http request id to the grpc server.
func UnaryRequestTimeInterceptor() grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req interface{},
		reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		if id := requestIDFromContext(ctx); id != "" {
			ctx = metadata.AppendToOutgoingContext(ctx, requestIDHeader, id)
		}

		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)
		logrus.Debugf("request time: %v: %v", method, time.Since(start))
		return err
	}
}
