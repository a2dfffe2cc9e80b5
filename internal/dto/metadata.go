package dto

// DataSourceSyncMetadata is the payload carried by data-source sync jobs.
type DataSourceSyncMetadata struct {
	ProviderType string `json:"provider_type,omitempty"`
	SourceType   string `json:"source_type,omitempty"`
	TriggerType  string `json:"trigger_type,omitempty"`
}
