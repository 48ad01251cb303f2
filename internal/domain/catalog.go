package domain

// Option is one selectable value of a configuration field.
type Option struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// OptionCatalog lists the valid values per configuration field.
// It guides the submission form only; the server enforces presence, not membership.
type OptionCatalog map[string][]Option

// DefaultCatalog returns the options offered by the submission form.
func DefaultCatalog() OptionCatalog {
	return OptionCatalog{
		"framework": {
			{Value: "sklearn", Label: "Scikit-learn", Description: "Tabular data, Classic ML"},
			{Value: "pytorch", Label: "PyTorch", Description: "Deep learning, Research"},
			{Value: "tensorflow", Label: "TensorFlow", Description: "Production, Enterprise"},
		},
		"task_type": {
			{Value: "classification", Label: "Classification", Description: "Predict categories"},
			{Value: "regression", Label: "Regression", Description: "Predict continuous values"},
			{Value: "timeseries", Label: "Time Series", Description: "Time-based predictions"},
		},
		"experiment_tracking": {
			{Value: "mlflow", Label: "MLflow", Description: "Open-source ML tracking"},
			{Value: "wandb", Label: "W&B", Description: "Cloud-based experiment tracking"},
			{Value: "none", Label: "None", Description: "No experiment tracking"},
		},
		"orchestration": {
			{Value: "airflow", Label: "Airflow", Description: "Workflow orchestration"},
			{Value: "kubeflow", Label: "Kubeflow", Description: "Kubernetes-native ML pipelines"},
			{Value: "none", Label: "None", Description: "No orchestration"},
		},
		"deployment": {
			{Value: "fastapi", Label: "FastAPI", Description: "REST API deployment"},
			{Value: "docker", Label: "Docker", Description: "Container deployment"},
			{Value: "kubernetes", Label: "Kubernetes", Description: "Production-scale deployment"},
		},
		"monitoring": {
			{Value: "evidently", Label: "Evidently", Description: "Automated ML monitoring"},
			{Value: "custom", Label: "Custom", Description: "Custom monitoring solution"},
			{Value: "none", Label: "None", Description: "No monitoring"},
		},
	}
}
