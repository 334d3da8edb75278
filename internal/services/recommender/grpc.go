package recommender

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/LeonardoBeccarini/agriassist/internal/model"
	_ "github.com/LeonardoBeccarini/agriassist/pkg/grpcjson"
)

// Servizio gRPC con codec JSON (content-subtype "json").
const (
	GRPCService             = "agriassist.Recommender"
	MethodPredictCrop       = "/" + GRPCService + "/PredictCrop"
	MethodPredictFertilizer = "/" + GRPCService + "/PredictFertilizer"
)

// FertilizerCall è il messaggio di PredictFertilizer.
type FertilizerCall struct {
	Crop   string                `json:"crop"`
	Params model.InputParameters `json:"params"`
}

type predictor interface {
	Crops(ctx context.Context, p model.InputParameters) ([]model.CropSuggestion, error)
	Fertilizer(ctx context.Context, p model.InputParameters, crop string) ([]model.FertilizerSuggestion, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: GRPCService,
	HandlerType: (*predictor)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PredictCrop", Handler: predictCropHandler},
		{MethodName: "PredictFertilizer", Handler: predictFertilizerHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func predictCropHandler(srv any, ctx context.Context, dec func(any) error, in grpc.UnaryServerInterceptor) (any, error) {
	req := new(model.InputParameters)
	if err := dec(req); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req any) (any, error) {
		out, err := srv.(predictor).Crops(ctx, *req.(*model.InputParameters))
		return out, grpcError(err)
	}
	if in == nil {
		return call(ctx, req)
	}
	return in(ctx, req, &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodPredictCrop}, call)
}

func predictFertilizerHandler(srv any, ctx context.Context, dec func(any) error, in grpc.UnaryServerInterceptor) (any, error) {
	req := new(FertilizerCall)
	if err := dec(req); err != nil {
		return nil, err
	}
	call := func(ctx context.Context, req any) (any, error) {
		r := req.(*FertilizerCall)
		out, err := srv.(predictor).Fertilizer(ctx, r.Params, r.Crop)
		return out, grpcError(err)
	}
	if in == nil {
		return call(ctx, req)
	}
	return in(ctx, req, &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodPredictFertilizer}, call)
}

func grpcError(err error) error {
	var ve *model.ValidationError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ve):
		return status.Error(codes.InvalidArgument, ve.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, "An internal error occurred")
}

// NewGRPCServer registra il motore e il servizio di health standard.
// Lo stato health va portato a NOT_SERVING con Shutdown prima di GracefulStop.
func NewGRPCServer(e *Engine, logger *zap.Logger) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("grpc")
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(func(ctx context.Context, req any, info *grpc.UnaryServerInfo, h grpc.UnaryHandler) (any, error) {
		resp, err := h(ctx, req)
		if err != nil {
			log.Debug("call failed", zap.String("method", info.FullMethod), zap.Error(err))
		}
		return resp, err
	}))
	s.RegisterService(&serviceDesc, e)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(GRPCService, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return s, hs
}
