// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions and messages.
package model

// =============================================================================
// COST ESTIMATE TYPES
// =============================================================================

// ComponentBreakdown is one line item of a cost estimate.
type ComponentBreakdown struct {
	ComponentName      string   `json:"component_name"`
	ComponentCategory  string   `json:"component_category"`
	CostEur            float64  `json:"cost_eur"`
	CostPerSqm         float64  `json:"cost_per_sqm"`
	PriorityLevel      string   `json:"priority_level"`
	LifecycleYears     *int     `json:"lifecycle_years"`
	ReplacementUrgency *string  `json:"replacement_urgency"`
}

// QualityLevelData holds the cost breakdown for one quality level of a
// multi-quality estimate.
type QualityLevelData struct {
	QualityLevel       string               `json:"quality_level"`
	TotalCostEur       float64              `json:"total_cost_eur"`
	CostPerSqm         float64              `json:"cost_per_sqm"`
	ComponentBreakdown []ComponentBreakdown `json:"component_breakdown"`
}

// MultiQualityData maps quality level names to their cost data.
type MultiQualityData struct {
	ProjectAreaSqm float64                     `json:"project_area_sqm"`
	QualityCosts   map[string]QualityLevelData `json:"quality_costs"`
}

// CostEstimate is the aggregate financial breakdown delivered with a result.
// It is purely a payload carried by a message and has no lifecycle of its own.
type CostEstimate struct {
	TotalCostEur       float64              `json:"total_cost_eur"`
	CostPerSqm         float64              `json:"cost_per_sqm"`
	ComponentBreakdown []ComponentBreakdown `json:"component_breakdown"`
	PriorityComponents []string             `json:"priority_components"`
	SQLQueryUsed       string               `json:"sql_query_used"`
	ConfidenceLevel    string               `json:"confidence_level"`
	DocumentAttachment *DocumentAttachment  `json:"document_attachment,omitempty"`
	IsMultiQuality     bool                 `json:"is_multi_quality"`
	MultiQualityData   *MultiQualityData    `json:"multi_quality_data,omitempty"`
}

// Attachment returns the document attachment carried by the estimate, or nil.
func (e *CostEstimate) Attachment() *DocumentAttachment {
	if e == nil {
		return nil
	}
	return e.DocumentAttachment
}
