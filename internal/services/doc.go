// Package services implements the business logic layer between the HTTP
// handlers and the generation core. It keeps transport concerns out of the
// orchestrator and orchestration concerns out of the handlers.
//
// # Architecture
//
// Services follow these architectural principles:
//
//	1. Interface-driven design for testability (interfaces live transport-side)
//	2. Context propagation for cancellation and tracing
//	3. Dependency injection for loose coupling
//	4. Domain-focused methods that encapsulate business rules
//
// # Available Services
//
// The package provides these core services:
//
//	- GenerationService: submission, job lookup, cancellation and waiting
//	- BundleService: lazily assembled download archives for finished jobs
//	- HealthService: liveness, readiness and version reporting
//
// # Error Handling
//
// Services surface generation.Error values unchanged so that handlers can
// map their kinds onto HTTP status codes in one place:
//
//	- invalid_input for rejected submissions
//	- not_found for missing jobs and unready bundles
//	- capacity_exhausted for admission refusals
//
// # Common Service Pattern
//
// Services typically follow this structure:
//
//	type ServiceName struct {
//	    orchestrator *generation.Orchestrator
//	    logger       *slog.Logger
//	}
//
//	func NewServiceName(orchestrator *generation.Orchestrator, logger *slog.Logger) (*ServiceName, error) {
//	    if orchestrator == nil {
//	        return nil, fmt.Errorf("orchestrator is required")
//	    }
//	    ...
//	}
//
//	func (s *ServiceName) BusinessOperation(ctx context.Context, input Input) (*Output, error) {
//	    result, err := s.orchestrator.Operation(input)
//	    if err != nil {
//	        s.logger.WarnContext(ctx, "operation rejected", "error", err)
//	        return nil, err
//	    }
//	    return result, nil
//	}
package services
