package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rekindle/internal/cil"
	"rekindle/internal/metadata"
)

var sampleCmd = &cobra.Command{
	Use:   "sample <out.rkimg>",
	Short: "Write a small demo assembly image for exercising the other commands",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := guestRuntime()
		if err != nil {
			return err
		}
		asm := sampleAssembly(metadata.NewDomain(rt))

		f, err := os.Create(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		if err := metadata.Save(f, asm); err != nil {
			return fmt.Errorf("save %s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sampleCmd)
}

// sampleAssembly models the compiled output of a two-view application:
// a loader type with the TryLoad dispatcher and a Build/Populate pair
// per view, and view types with named-child wiring, override fields,
// and a refresh-marked method.
func sampleAssembly(d *metadata.Domain) *metadata.Assembly {
	asm := d.NewAssembly("SampleApp")
	mod := asm.Module()

	control := asm.NewType("Avalonia.Controls", "Control", nil)
	findControl := control.NewMethod(metadata.MethodSpec{
		Name:   "FindControl",
		Params: []metadata.ParamDef{{Name: "name", Type: metadata.TypeString}},
		Return: control,
	})

	loader := asm.NewType("CompiledAvaloniaXaml", "!XamlLoader", nil)

	views := []string{"MainWindow", "SettingsView"}
	builds := make([]*metadata.MethodDef, len(views))
	locators := make([]string, len(views))
	for i, name := range views {
		view := asm.NewType("SampleApp.Views", name, control)
		child := view.NewField("TitleBar", control, false)
		view.NewField("!XamlIlPopulateOverride", metadata.TypeObject, true)
		view.NewMethod(metadata.MethodSpec{Name: ".ctor"})
		view.NewMethod(metadata.MethodSpec{
			Name:  "OnHotReload",
			Attrs: []string{"AvaloniaHotReloadAttribute"},
		})
		view.NewMethod(metadata.MethodSpec{
			Name: "InitializeComponent",
			Body: cil.NewEncoder().
				Op(cil.Ldarg0).
				Token(cil.Ldstr, mod.StringToken("TitleBar")).
				Token(cil.Callvirt, mod.MethodToken(findControl)).
				Token(cil.Stfld, mod.FieldToken(child)).
				Op(cil.Ret).
				MustBytes(),
		})

		locator := fmt.Sprintf("avares://SampleApp/Views/%s.axaml", name)
		locators[i] = locator
		builds[i] = loader.NewMethod(metadata.MethodSpec{
			Name:   "Build:" + locator,
			Static: true,
			Return: view,
		})
		loader.NewMethod(metadata.MethodSpec{
			Name:   "Populate:" + locator,
			Static: true,
			Params: []metadata.ParamDef{
				{Name: "sp", Type: metadata.TypeServiceProvider},
				{Name: "target", Type: view},
			},
			Body: cil.NewEncoder().
				Op(cil.Ldarg0).
				Op(cil.Ldarg1).
				Token(cil.Ldstr, mod.StringToken(locator)).
				Op(cil.Ret).
				MustBytes(),
		})
	}

	e := cil.NewEncoder()
	for i, build := range builds {
		e.Op(cil.Ldarg0).
			Token(cil.Ldstr, mod.StringToken(locators[i])).
			Token(cil.Call, mod.MethodToken(metadata.StringEquals)).
			Int8(cil.BrfalseS, 8).
			Token(cil.Call, mod.MethodToken(build)).
			Op(cil.Ret)
	}
	e.Op(cil.Ldnull).Op(cil.Ret)
	loader.NewMethod(metadata.MethodSpec{
		Name:   "TryLoad",
		Static: true,
		Params: []metadata.ParamDef{{Name: "uri", Type: metadata.TypeString}},
		Return: metadata.TypeObject,
		Body:   e.MustBytes(),
	})

	return asm
}
