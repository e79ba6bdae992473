// Command loansim manages a loan portfolio and simulates overpayment strategies.
package main

func main() {
	Execute()
}
