package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/drai-ai/drai/internal/chat"
)

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or edit the patient profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return profileShow()
		},
	}

	var name, age, gender, history string
	set := &cobra.Command{
		Use:   "set",
		Short: "Update profile fields (unset flags are kept)",
		Example: `  drai profile set --name "Alex" --age 34
  drai profile set --history "asthma, penicillin allergy"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return profileSet(cmd, chat.Profile{
				Name: name, Age: age, Gender: gender, MedicalHistory: history,
			})
		},
	}
	set.Flags().StringVar(&name, "name", "", "patient name")
	set.Flags().StringVar(&age, "age", "", "patient age")
	set.Flags().StringVar(&gender, "gender", "", "patient gender")
	set.Flags().StringVar(&history, "history", "", "relevant medical history")
	cmd.AddCommand(set)

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the stored profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return profileClear()
		},
	})

	return cmd
}

func profileShow() error {
	st, err := openStore(initConfig())
	if err != nil {
		return err
	}
	defer st.Close()

	p := st.Profile()
	if p.Empty() {
		fmt.Println("no profile set (drai profile set --name … to add one)")
		return nil
	}
	printField := func(label, value string) {
		if value != "" {
			fmt.Printf("%-9s %s\n", label+":", value)
		}
	}
	printField("name", p.Name)
	printField("age", p.Age)
	printField("gender", p.Gender)
	printField("history", p.MedicalHistory)
	return nil
}

func profileSet(cmd *cobra.Command, updates chat.Profile) error {
	st, err := openStore(initConfig())
	if err != nil {
		return err
	}
	defer st.Close()

	p := st.Profile()
	if cmd.Flags().Changed("name") {
		p.Name = updates.Name
	}
	if cmd.Flags().Changed("age") {
		p.Age = updates.Age
	}
	if cmd.Flags().Changed("gender") {
		p.Gender = updates.Gender
	}
	if cmd.Flags().Changed("history") {
		p.MedicalHistory = updates.MedicalHistory
	}
	if err := st.SaveProfile(p); err != nil {
		return err
	}
	fmt.Println("profile saved")
	return nil
}

func profileClear() error {
	st, err := openStore(initConfig())
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.SaveProfile(chat.Profile{}); err != nil {
		return err
	}
	fmt.Println("profile cleared")
	return nil
}
