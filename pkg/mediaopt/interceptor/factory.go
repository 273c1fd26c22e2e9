package interceptor

import (
	"errors"

	"github.com/pion/interceptor"

	"github.com/thesyncim/mediaopt/pkg/mediaopt"
)

// FactoryOption configures the RateControlInterceptorFactory.
type FactoryOption func(*RateControlInterceptorFactory) error

// RateControlInterceptorFactory creates RateControlInterceptor instances for
// each PeerConnection. Register this factory with the interceptor registry
// to enable sender-side encoder rate control.
type RateControlInterceptorFactory struct {
	maxBitrateBps    int64
	initialTargetBps uint32
	userFrameRate    float64
	dropperEnabled   bool
	recordFrames     bool
	onTarget         func(effectiveBitrateBps uint32)

	// controllers created by NewInterceptor, exposed for the encode loop
	onController func(*mediaopt.RateController)
}

// WithMaxBitrate sets the codec maximum bitrate in bits per second.
// Targets above it are capped. Default: 0 (unlimited).
func WithMaxBitrate(bitrateBps int64) FactoryOption {
	return func(f *RateControlInterceptorFactory) error {
		if bitrateBps < 0 {
			return errors.New("max bitrate must not be negative")
		}
		f.maxBitrateBps = bitrateBps
		return nil
	}
}

// WithInitialTargetBitrate sets the target bitrate used before the first
// REMB estimate arrives. Default: 300000 (300 kbps).
func WithInitialTargetBitrate(bitrateBps uint32) FactoryOption {
	return func(f *RateControlInterceptorFactory) error {
		f.initialTargetBps = bitrateBps
		return nil
	}
}

// WithUserFrameRate sets the configured capture frame rate, used as the
// fallback whenever no live frame-rate estimate exists. Default: 30.
func WithUserFrameRate(frameRateHz float64) FactoryOption {
	return func(f *RateControlInterceptorFactory) error {
		if frameRateHz <= 0 {
			return errors.New("user frame rate must be positive")
		}
		f.userFrameRate = frameRateHz
		return nil
	}
}

// WithFrameDropping toggles whether drop decisions may ever report true.
// Default: true. With dropping disabled the controller still tracks rates,
// which keeps stats meaningful.
func WithFrameDropping(enabled bool) FactoryOption {
	return func(f *RateControlInterceptorFactory) error {
		f.dropperEnabled = enabled
		return nil
	}
}

// WithFactoryFrameAccounting mirrors WithFrameAccounting for interceptors
// built by this factory. Default: true.
func WithFactoryFrameAccounting(enabled bool) FactoryOption {
	return func(f *RateControlInterceptorFactory) error {
		f.recordFrames = enabled
		return nil
	}
}

// WithFactoryOnTargetUpdate sets a callback invoked each time a REMB
// estimate is applied on any interceptor built by this factory.
func WithFactoryOnTargetUpdate(fn func(effectiveBitrateBps uint32)) FactoryOption {
	return func(f *RateControlInterceptorFactory) error {
		f.onTarget = fn
		return nil
	}
}

// WithOnController sets a callback invoked with the RateController of every
// interceptor this factory builds. The encode loop needs the controller to
// ask ShouldDropFrame; this is how it gets hold of it, since Pion constructs
// interceptors internally per PeerConnection.
func WithOnController(fn func(*mediaopt.RateController)) FactoryOption {
	return func(f *RateControlInterceptorFactory) error {
		f.onController = fn
		return nil
	}
}

// NewRateControlInterceptorFactory creates a new factory for
// RateControlInterceptor instances.
//
// Example:
//
//	factory, err := NewRateControlInterceptorFactory(
//	    WithMaxBitrate(2_500_000),
//	    WithInitialTargetBitrate(500_000),
//	    WithUserFrameRate(30),
//	)
//	if err != nil {
//	    return err
//	}
//	registry.Add(factory)
func NewRateControlInterceptorFactory(opts ...FactoryOption) (*RateControlInterceptorFactory, error) {
	f := &RateControlInterceptorFactory{
		maxBitrateBps:    0,
		initialTargetBps: 300_000,
		userFrameRate:    30,
		dropperEnabled:   true,
		recordFrames:     true,
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// NewInterceptor creates a new RateControlInterceptor for a PeerConnection.
// This method is called by the interceptor registry when setting up a connection.
func (f *RateControlInterceptorFactory) NewInterceptor(_ string) (interceptor.Interceptor, error) {
	controller := mediaopt.NewRateController(nil, nil)
	controller.SetEncodingData(f.maxBitrateBps, f.initialTargetBps, f.userFrameRate)
	controller.EnableFrameDropper(f.dropperEnabled)

	opts := []InterceptorOption{
		WithFrameAccounting(f.recordFrames),
	}
	if f.onTarget != nil {
		opts = append(opts, WithOnTargetUpdate(f.onTarget))
	}

	i := NewRateControlInterceptor(controller, opts...)

	if f.onController != nil {
		f.onController(controller)
	}
	return i, nil
}
