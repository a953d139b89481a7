package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vibestudy/vibestudy-reviewer/internal/types"
)

func gradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Manage grade jobs",
	}
	cmd.AddCommand(gradeStartCmd(), gradeGetCmd(), gradeStreamCmd(), gradeCancelCmd())
	return cmd
}

// taskFile is the YAML shape accepted by --tasks.
type taskFile struct {
	CurriculumID string `yaml:"curriculum_id"`
	TaskID       string `yaml:"task_id"`
	Config       *struct {
		MaxFiles            int `yaml:"max_files"`
		MaxCharsPerFile     int `yaml:"max_chars_per_file"`
		MaxParallelTasks    int `yaml:"max_parallel_tasks"`
		MaxParallelCriteria int `yaml:"max_parallel_criteria"`
	} `yaml:"config"`
	Tasks []struct {
		Title            string `yaml:"title"`
		Description      string `yaml:"description"`
		EstimatedMinutes int    `yaml:"estimated_minutes"`
		Criteria         []struct {
			ID          string  `yaml:"id"`
			Description string  `yaml:"description"`
			Weight      float64 `yaml:"weight"`
		} `yaml:"acceptance_criteria"`
	} `yaml:"tasks"`
}

func loadTaskFile(path string) (types.GradeRequest, error) {
	var req types.GradeRequest

	raw, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("read tasks file: %w", err)
	}
	var tf taskFile
	if err := yaml.Unmarshal(raw, &tf); err != nil {
		return req, fmt.Errorf("parse tasks file: %w", err)
	}

	req.CurriculumID = tf.CurriculumID
	req.TaskID = tf.TaskID
	if tf.Config != nil {
		req.Config = &types.GradeConfig{
			MaxFiles:            tf.Config.MaxFiles,
			MaxCharsPerFile:     tf.Config.MaxCharsPerFile,
			MaxParallelTasks:    tf.Config.MaxParallelTasks,
			MaxParallelCriteria: tf.Config.MaxParallelCriteria,
		}
	}
	for _, t := range tf.Tasks {
		task := types.GradeTask{
			Title:            t.Title,
			Description:      t.Description,
			EstimatedMinutes: t.EstimatedMinutes,
		}
		for _, c := range t.Criteria {
			task.AcceptanceCriteria = append(task.AcceptanceCriteria, types.Criterion{
				ID:          c.ID,
				Description: c.Description,
				Weight:      c.Weight,
			})
		}
		req.Tasks = append(req.Tasks, task)
	}
	return req, nil
}

func gradeStartCmd() *cobra.Command {
	var tasksPath string
	var stream bool
	cmd := &cobra.Command{
		Use:   "start <repo-url>",
		Short: "Start a grade job from a YAML task file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := loadTaskFile(tasksPath)
			if err != nil {
				return err
			}
			req.RepoURL = args[0]

			id, err := client().StartGrade(req)
			if err != nil {
				return err
			}
			fmt.Println(id)
			if stream {
				return client().StreamGrade(id, printEvent)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tasksPath, "tasks", "", "YAML file with tasks and acceptance criteria")
	cmd.MarkFlagRequired("tasks")
	cmd.Flags().BoolVar(&stream, "stream", false, "follow the event stream until completion")
	return cmd
}

func gradeGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a grade job snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := client().GetGrade(args[0])
			if err != nil {
				return err
			}
			return printJSON(snap)
		},
	}
}

func gradeStreamCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stream <id>",
		Short: "Follow a grade job's event stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().StreamGrade(args[0], printEvent)
		},
	}
}

func gradeCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a running grade job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return client().CancelGrade(args[0])
		},
	}
}
