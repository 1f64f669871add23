package server

import "time"

// RequiredServiceInstance is the admin-facing view of one configured RSI
// (C8), returned by ListRequiredServiceInstances.
type RequiredServiceInstance struct {
	Deployment         string `json:"deployment"`
	Service            uint16 `json:"service"`
	Major              uint8  `json:"major"`
	Instance           uint16 `json:"instance"`
	MinorVersionPolicy string `json:"minor_version_policy"`
	State              string `json:"state"`
	ActiveOffers       int    `json:"active_offers"`
	Requesters         int    `json:"requesters"`
}

// ListRequiredServiceInstancesRequest has no fields; every configured RSI
// is always returned.
type ListRequiredServiceInstancesRequest struct{}

// ListRequiredServiceInstancesResponse carries the current RSI snapshot.
type ListRequiredServiceInstancesResponse struct {
	RequiredServiceInstances []RequiredServiceInstance `json:"required_service_instances"`
}

// Application is the admin-facing view of one connected process (C6),
// returned by ListApplications.
type Application struct {
	Id                uint64 `json:"id"`
	RequestedServices int    `json:"requested_services"`
	OfferedServices   int    `json:"offered_services"`
}

// ListApplicationsRequest has no fields; every connected application is
// always returned.
type ListApplicationsRequest struct{}

// ListApplicationsResponse carries the current application snapshot.
type ListApplicationsResponse struct {
	Applications []Application `json:"applications"`
}

// ServiceEvent is one offer-start/offer-stop transition, streamed by
// WatchServiceEvents.
type ServiceEvent struct {
	Deployment string    `json:"deployment"`
	Service    uint16    `json:"service"`
	Major      uint8     `json:"major"`
	Instance   uint16    `json:"instance"`
	Started    bool      `json:"started"`
	Timestamp  time.Time `json:"timestamp"`
}

// WatchServiceEventsRequest has no fields; every ServiceEvent is streamed
// to every watcher.
type WatchServiceEventsRequest struct{}

// WatchServiceEventsResponse carries one streamed ServiceEvent.
type WatchServiceEventsResponse struct {
	Event ServiceEvent `json:"event"`
}
